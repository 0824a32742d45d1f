// Package memory stores sentences with their embeddings and recalls the
// nearest ones for a query.
//
// Invariants:
// - Text is split into sentences before embedding; each sentence gets its own uuid.
// - All vectors in one database share the dimension of the first stored embedding.
// - Recall scores are cosine similarity (1 - cosine distance), highest first.
//
// Usage:
//
//	store, _ := memory.NewStore(memory.Config{
//		DBPath:            "/home/me/.shellm/memory.db",
//		EmbeddingProvider: memory.NewOpenAIProvider(memory.ProviderConfig{Model: "nomic-embed-text"}),
//	})
//	defer store.Close()
//	_, _ = store.Memorize(ctx, "The build server is named forebrain.")
//	results, _ := store.Recall(ctx, "what is the build server called?", 5)
//	_ = results
package memory

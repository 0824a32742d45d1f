// Package agent streams chat completions from a language model provider.
//
// Invariants:
// - Text deltas are written to the caller's writer as they arrive, never buffered to the end.
// - A failed write to the caller's writer aborts the stream.
// - History is read before the request and the reply is appended only after the stream ends.
//
// Usage:
//
//	provider, _ := (&agent.ProviderFactory{}).NewProvider(agent.ProviderConfig{
//		Provider: "openai",
//		BaseURL:  "http://localhost:11434/v1",
//	})
//	runner, _ := agent.NewRunner(agent.Config{Provider: provider, History: store})
//	result, _ := runner.Run(ctx, agent.RunParams{Prompt: "list files", Model: "gemma2:27b"}, os.Stdout)
//	_ = result
package agent

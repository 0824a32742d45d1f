// Package history persists the chat transcript as a JSONL file.
//
// Invariants:
// - Every line is one Message; unreadable lines are skipped on load.
// - Appends are serialized and synced before returning.
// - With a message limit, the file never keeps more than the newest MaxMessages entries.
//
// Usage:
//
//	store, _ := history.New("/home/me/.shellm/history.jsonl", 200)
//	_ = store.Append(history.Message{Role: history.RoleUser, Content: "hello"})
//	msgs, _ := store.Load()
//	_ = msgs
package history

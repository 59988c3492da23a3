// Package session keeps chat sessions in process memory.
//
// Invariants:
// - history[0] of every session is the system message it was created with.
// - A session's domain never changes after creation.
// - History is append-only; reads return copies.
// - The store lock is held only for the in-memory read or append, never across I/O.
//
// Two continuation turns on the same session are not serialized against each
// other: both user messages may land before either reply. Sessions live until
// the process exits unless a RetentionPolicy other than KeepForever is
// configured and a Sweeper is running.
//
// Usage:
//
//	store := session.NewStore(session.KeepForever{})
//	id, _ := store.Create([]session.Message{{Role: session.RoleSystem, Content: "..."}}, prompt.DomainGeneric)
//	_ = store.Append(id, session.RoleUser, "hello")
//	history, _ := store.ReadAll(id)
//	_ = history
package session

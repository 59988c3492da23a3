// Package chat dispatches one conversational turn.
//
// A turn without a session id opens a session: the system instruction is built
// from the domain and context, the session is created, and the history is sent
// upstream. A turn with a session id continues one: the user message is
// appended first and stays in history even if the upstream call fails.
//
// The dispatcher holds no lock across the upstream call and does not
// serialize turns on the same session.
package chat

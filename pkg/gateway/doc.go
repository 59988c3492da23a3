// Package gateway exposes the chat dispatcher over HTTP and WebSocket.
//
// Routes:
//
//	POST /chat     one turn per request
//	GET  /ws       one turn per text frame, replies in order
//	GET  /healthz  liveness
//	GET  /metrics  prometheus
//
// A successful turn returns {"response": ..., "session_id": ...}. Failures
// return {"error": {"kind": ..., "message": ...}} with a status derived from
// the kind; WebSocket frames carry the same body and the status in "status".
package gateway

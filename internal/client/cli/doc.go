// Package cli is the interactive docdash terminal client.
//
// App wires the session, document and category services to a line-based
// REPL. Commands that need a session are refused while logged out, and
// the prompt shows the current screen together with the signed-in email.
//
// Background work runs beside the REPL: the session reconciler refreshes
// the cached profile, and a categorization poller reprints the document
// list while fresh uploads still wait for their categories. Output from
// both goes through the same writer, so callers should wrap it with
// NewSyncWriter.
package cli

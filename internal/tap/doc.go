// Package tap implements a diagnostic traffic tap: a filter chain stage that
// observes raw inbound and outbound traffic of every live session without
// altering it and writes a human-readable trace to a sink.
//
// A [Tap] is inserted into an acceptor chain right after the last
// transformation stage (compression, else tls, else the tail) so it sees
// decompressed, decrypted bytes. Every event is forwarded to the next stage
// unchanged regardless of whether the tap is enabled. Outbound buffers are
// rendered through a duplicate view, so the cursor of the buffer handed to the
// transport is never moved.
//
// The [Debugger] plugin owns one tap per channel, the persisted enable
// settings and the whitespace-logging switch.
package tap

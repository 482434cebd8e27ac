// Package server exposes the Tea chat API over HTTP. The chat endpoint
// relays agent events to the client as line-delimited SSE frames and
// enforces the per-session query quota before any model work starts.
package server

// Package quota enforces the per-session free-query allowance. Sessions are
// keyed by an opaque client-supplied token and created lazily on first
// reference; the counter only ever increases except through an explicit
// reset. The gate must be consulted before any model call is issued.
package quota

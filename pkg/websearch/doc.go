// Package websearch provides a client for the Serper Google Search API.
// Responses are normalized into a compact result list suitable for feeding
// back to a model as tool output.
package websearch

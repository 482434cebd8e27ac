// Package toolexecutor manages tool registration and execution for the
// agent loop. Tools are registered with typed parameter definitions, calls
// are validated against a generated JSON Schema, and every execution is
// isolated: a failing handler produces an error result, never an error
// return, so one bad tool call cannot abort a turn.
package toolexecutor

// Package agent runs the Tea conversation loop: it streams a model turn,
// surfaces text and tool-use events as they arrive, executes requested
// tools, feeds results back, and repeats until the model finishes or the
// iteration cap is hit. Every run ends with exactly one terminal event.
package agent

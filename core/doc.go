// Package core defines the shared data model of the orchestration engine:
// the tagged message variants and conversation snapshot, the internal event
// feed a graph run produces, the turn error taxonomy, and the per-turn
// execution context handed to graph nodes.
package core

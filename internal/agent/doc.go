// Package agent contains the core orchestrator that turns natural-language
// questions into tool invocations against the JustLend protocol. It runs the
// fact extraction, plan/execute and summarisation stages for every chat turn
// and owns the per-session locking discipline.
package agent

// Package orchestrator runs execution plans and corrects them until the
// answer is good enough or the iteration budget is spent.
//
// # Overview
//
// Each iteration walks a fixed state sequence:
//
//	Planning → Executing → Validating → Scoring → {Accepted | Correcting | Exhausted}
//
// An iteration starts from an empty ExecContext and re-executes every step
// of the current plan.
//
// # Key Components
//
// ## Executor
//
// The Executor schedules one plan execution. Phases run strictly in order;
// the steps of a phase run concurrently, bounded by MaxParallelSteps, and the
// next phase starts only after all of them have returned. A step that fails,
// panics or outlives its StepTimeout has its memory slot set to a
// plan.StepFailure; its siblings keep running.
//
// ## Orchestrator
//
// The Orchestrator owns the corrective loop. It validates the output step of
// each iteration, scores it, and accepts it when validation passed and the
// overall confidence reaches the plan threshold. Otherwise every
// contradiction becomes a correction reason, the plan is enriched with a
// supplemental lookup phase, and the loop goes on while a rule asks for a
// requery and iterations remain.
//
// Correction history is owned by a single Run call.
//
// # Usage
//
//	orch := orchestrator.New(planner.New(registry),
//	    orchestrator.WithLogger(logger),
//	    orchestrator.WithConfig(orchestrator.Config{StepTimeout: 20 * time.Second}),
//	)
//	resp, err := orch.Run(ctx, p, runner, 3)
package orchestrator

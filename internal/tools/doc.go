// Package tools implements the tool runner the orchestrator calls.
//
// A Registry maps method names to handlers and normalizes every return
// into a plan.Envelope. Middleware decorate any plan.ToolRunner:
//
//	runner := tools.Chain(registry,
//		tools.WithBreaker(5, 30*time.Second),
//		tools.WithCache(cache, 5*time.Minute),
//		tools.WithRateLimit(rate.NewLimiter(20, 10)),
//		tools.WithTimeout(15*time.Second),
//	)
//
// The first middleware listed is the outermost. Failures never surface as
// Go errors past the registry; they travel as failed envelopes so the
// orchestrator can score them.
package tools

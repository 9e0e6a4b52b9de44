// Package reflection provides a heuristic self-critique of a final answer.
//
// The critique never calls an external service. It checks that the answer
// carries a summary, at least one source and at least one metric, and
// surfaces any warnings the aggregation recorded. The verdict scores the
// answer on a 0-10 scale and asks for one more corrected pass when the
// score falls below 8.
//
// # Usage
//
//	agent := reflection.NewAgent()
//	verdict := agent.Reflect(query, response, sources)
//	if verdict.ShouldContinue {
//	    // replan once and run a single corrected iteration
//	}
//
// Verdicts can be rendered for humans with Format(verdict, "markdown") or
// Format(verdict, "text").
package reflection

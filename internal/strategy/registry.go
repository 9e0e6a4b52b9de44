package strategy

import "github.com/DanielJandric/embeddingsall-sub000/internal/plan"

// Registry maps every intent to its strategy. It is immutable once built.
type Registry struct {
	cfg        Config
	strategies map[Intent]Strategy
}

// NewRegistry builds one strategy per intent.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{cfg: cfg, strategies: make(map[Intent]Strategy, len(allIntents))}

	fact := newFactual(cfg)
	fin := newFinancial(cfg)
	comp := newComparative(cfg)
	land := newLandRegistry(cfg)
	stake := newStakeholder(cfg)

	for _, s := range []Strategy{fact, fin, comp, land, stake, newRisk(cfg)} {
		r.strategies[s.Intent()] = s
	}
	r.strategies[IntentSynthesis] = newSynthesis(cfg, fact, fin, comp, land, stake)
	return r
}

// Get returns the strategy for intent.
func (r *Registry) Get(intent Intent) (Strategy, bool) {
	s, ok := r.strategies[intent]
	return s, ok
}

// Default returns the strategy of DefaultIntent.
func (r *Registry) Default() Strategy {
	return r.strategies[DefaultIntent]
}

// Config returns the configuration the registry was built with.
func (r *Registry) Config() Config {
	return r.cfg
}

// BuildPlan builds a plan with the strategy of intent, falling back to the
// default strategy for unknown intents.
func (r *Registry) BuildPlan(intent Intent, query string, opts Options) (plan.Plan, error) {
	s, ok := r.Get(intent)
	if !ok {
		s = r.Default()
	}
	return s.BuildPlan(query, opts)
}

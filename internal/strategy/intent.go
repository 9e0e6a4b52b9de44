package strategy

import "strings"

// Intent is the closed set of query intents.
type Intent string

const (
	IntentFactual      Intent = "factual"
	IntentFinancial    Intent = "financial"
	IntentRisk         Intent = "risk"
	IntentLandRegistry Intent = "land_registry"
	IntentStakeholder  Intent = "stakeholder"
	IntentComparative  Intent = "comparative"
	IntentSynthesis    Intent = "synthesis"
)

// DefaultIntent is used when nothing else matches.
const DefaultIntent = IntentFactual

var allIntents = []Intent{
	IntentFactual,
	IntentFinancial,
	IntentRisk,
	IntentLandRegistry,
	IntentStakeholder,
	IntentComparative,
	IntentSynthesis,
}

// AllIntents lists every intent.
func AllIntents() []Intent {
	return append([]Intent(nil), allIntents...)
}

// ParseIntent parses a case-insensitive intent name. "land-registry" is
// accepted as an alias of land_registry.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for _, i := range allIntents {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

func (i Intent) String() string { return string(i) }

package router

import (
	"regexp"
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

// keyword matches a normalized query. A trailing "*" matches any token with
// that prefix; a keyword with a space matches as a phrase.
type keyword string

func (k keyword) match(q query) bool {
	s := string(k)
	switch {
	case strings.HasSuffix(s, "*"):
		prefix := strings.TrimSuffix(s, "*")
		for _, tok := range q.tokens {
			if strings.HasPrefix(tok, prefix) {
				return true
			}
		}
		return false
	case strings.Contains(s, " "):
		return strings.Contains(" "+q.joined+" ", " "+s+" ")
	default:
		_, ok := q.set[s]
		return ok
	}
}

type keywordSet struct {
	intent   strategy.Intent
	keywords []keyword
}

// intentKeywords are tried in order; the first set with a match wins.
var intentKeywords = []keywordSet{
	{strategy.IntentFinancial, []keyword{"rendement*", "finance*", "financier*", "cashflow*", "tri", "dcf"}},
	{strategy.IntentRisk, []keyword{"risque*", "vacance*", "covenant*", "stress", "exposition"}},
	{strategy.IntentComparative, []keyword{"compar*", "benchmark*", "marche", "vs"}},
	{strategy.IntentLandRegistry, []keyword{"registre*", "servitude*", "parcelle*", "foncier*"}},
	{strategy.IntentStakeholder, []keyword{"stakeholder*", "locataire*", "bailleur*", "tenant*"}},
	{strategy.IntentSynthesis, []keyword{"rapport*", "synthese*", "due diligence", "analyse complete"}},
}

type fallback struct {
	intent strategy.Intent
	re     *regexp.Regexp
}

// synonymFallbacks catch wording the keyword sets miss.
var synonymFallbacks = []fallback{
	{strategy.IntentFinancial, regexp.MustCompile(`\b(rentabilite|cash|revenus?|loyers?|noi|yield)\b`)},
	{strategy.IntentRisk, regexp.MustCompile(`\b(vacants?|impayes?|defaut|risk)\b`)},
	{strategy.IntentLandRegistry, regexp.MustCompile(`\b(cadastre|gages?|hypotheques?|land registry)\b`)},
	{strategy.IntentStakeholder, regexp.MustCompile(`\b(proprietaires?|gerances?|occupants?)\b`)},
	{strategy.IntentComparative, regexp.MustCompile(`\b(versus|moyenne du marche)\b`)},
}

type query struct {
	joined string
	tokens []string
	set    map[string]struct{}
}

func newQuery(text string) query {
	tokens := strings.FieldsFunc(strategy.Normalize(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return query{joined: strings.Join(tokens, " "), tokens: tokens, set: set}
}

// Classify maps free text to an intent. It never fails; unknown wording is
// factual.
func Classify(text string) strategy.Intent {
	q := newQuery(text)
	for _, ks := range intentKeywords {
		for _, k := range ks.keywords {
			if k.match(q) {
				return ks.intent
			}
		}
	}
	for _, f := range synonymFallbacks {
		if f.re.MatchString(q.joined) {
			return f.intent
		}
	}
	return strategy.DefaultIntent
}

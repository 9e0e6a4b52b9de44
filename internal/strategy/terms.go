package strategy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugTokens bounds the property slug.
const maxSlugTokens = 8

// maxAddressTail bounds an address that has no street number.
const maxAddressTail = 4

// streetLeads are the words that open a street address.
var streetLeads = wordSet(
	"avenue", "av", "rue", "route", "chemin", "impasse", "allee", "boulevard",
	"bd", "place", "quai", "sentier", "passage", "esplanade", "parc", "cours",
	"square",
)

// addressStopWords end an address; they introduce descriptive text.
var addressStopWords = wordSet(
	"surface", "loyer", "loyers", "analyse", "rendement", "etat", "locatif",
	"charges", "vacance", "risque", "rapport", "synthese", "registre",
	"servitude", "parcelle", "locataire", "bailleur", "comparaison", "benchmark",
)

// slugNoise is dropped from slugs and file-name patterns.
var slugNoise = wordSet(
	"de", "du", "des", "la", "le", "les", "l", "d", "a", "au", "aux", "et", "en",
)

// nonCommuneWords can never be read as a commune name.
var nonCommuneWords = wordSet(
	"quel", "quelle", "quels", "quelles", "donne", "donner", "montre", "liste",
	"pour", "avec", "sur", "dans", "par", "immeuble", "immeubles", "propriete",
	"proprietes", "portefeuille", "document", "documents", "tenant", "tenants",
	"stakeholder", "finance", "cashflow", "tri", "dcf", "covenant", "stress",
	"exposition", "marche", "foncier", "due", "diligence", "complete", "suisse",
	"comparer", "comparatif", "comparative", "compare", "vs", "synthesis", "report",
)

var streetNumber = regexp.MustCompile(`^\d{1,4}[a-z]?$`)

// Terms are the domain terms extracted from a query.
type Terms struct {
	// Normalized is the accent-folded, lower-cased, whitespace-collapsed query.
	Normalized string
	// Tokens are the alphanumeric tokens of Normalized.
	Tokens []string
	// Address is the normalized street address, e.g. "avenue de la gare 12".
	Address      string
	StreetNumber string
	// Commune keeps the spelling used in the query, title-cased.
	Commune      string
	PropertySlug string

	addressTokens []string
}

// Normalize folds diacritics, lower-cases and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(foldAccents(s))), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ExtractTerms runs the deterministic address and commune tokenizer.
func ExtractTerms(query string) Terms {
	t := Terms{Normalized: Normalize(query)}
	t.Tokens = tokenize(t.Normalized)

	start, end := addressSpan(t.Tokens)
	if start >= 0 {
		t.addressTokens = t.Tokens[start:end]
		t.Address = strings.Join(t.addressTokens, " ")
		for _, tok := range t.addressTokens {
			if streetNumber.MatchString(tok) {
				t.StreetNumber = tok
				break
			}
		}
	}

	t.Commune = extractCommune(query, t, end)
	t.PropertySlug = buildSlug(t)
	return t
}

// addressSpan returns the [start,end) token range of the address, or -1,-1.
func addressSpan(tokens []string) (int, int) {
	lead := -1
	for i, tok := range tokens {
		if _, ok := streetLeads[tok]; ok {
			lead = i
			break
		}
	}
	if lead < 0 {
		return -1, -1
	}

	start := lead
	hasNumber := false
	// "12 rue du Lac" puts the number first.
	if lead > 0 && streetNumber.MatchString(tokens[lead-1]) {
		start = lead - 1
		hasNumber = true
	}

	end := lead + 1
	for end < len(tokens) && end-lead <= maxAddressTail {
		tok := tokens[end]
		if _, stop := addressStopWords[tok]; stop {
			break
		}
		if streetNumber.MatchString(tok) {
			if !hasNumber {
				end++
			}
			break
		}
		end++
	}
	return start, end
}

// extractCommune prefers a capitalized word of the original query (never its
// first word); otherwise it takes the last plain word after the street
// number.
func extractCommune(query string, t Terms, addressEnd int) string {
	inAddress := wordSet(t.addressTokens...)
	words := tokenize(query)

	original := make(map[string]string, len(words))
	for _, w := range words {
		key := Normalize(w)
		if _, seen := original[key]; !seen {
			original[key] = w
		}
	}

	for i := len(words) - 1; i > 0; i-- {
		w := words[i]
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) || !isAlpha(w) {
			continue
		}
		key := Normalize(w)
		if _, ok := inAddress[key]; ok || !communeCandidate(key) {
			continue
		}
		return titleCase(w)
	}

	if t.StreetNumber == "" || addressEnd < 0 {
		return ""
	}
	for i := len(t.Tokens) - 1; i >= addressEnd; i-- {
		tok := t.Tokens[i]
		if !isAlpha(tok) || !communeCandidate(tok) {
			continue
		}
		if w, ok := original[tok]; ok {
			return titleCase(w)
		}
		return titleCase(tok)
	}
	return ""
}

func communeCandidate(word string) bool {
	if utf8.RuneCountInString(word) < 3 {
		return false
	}
	for _, set := range []map[string]struct{}{streetLeads, addressStopWords, slugNoise, nonCommuneWords} {
		if _, ok := set[word]; ok {
			return false
		}
	}
	return true
}

func buildSlug(t Terms) string {
	var source []string
	if len(t.addressTokens) > 0 {
		source = append(source, t.addressTokens...)
	} else {
		for _, tok := range t.Tokens {
			if _, stop := addressStopWords[tok]; stop {
				continue
			}
			if _, generic := nonCommuneWords[tok]; generic {
				continue
			}
			source = append(source, tok)
		}
	}
	if t.Commune != "" {
		source = append(source, tokenize(Normalize(t.Commune))...)
	}

	seen := make(map[string]struct{})
	slug := make([]string, 0, maxSlugTokens)
	for _, tok := range source {
		if _, noise := slugNoise[tok]; noise {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		slug = append(slug, tok)
		if len(slug) == maxSlugTokens {
			break
		}
	}
	return strings.Join(slug, "-")
}

// FilePattern is an ILIKE pattern for file names mentioning the target.
func (t Terms) FilePattern() string {
	var parts []string
	for _, tok := range t.addressTokens {
		if _, noise := slugNoise[tok]; !noise {
			parts = append(parts, tok)
		}
	}
	switch {
	case len(parts) > 0:
		return "%" + strings.Join(parts, "%") + "%"
	case t.Commune != "":
		return "%" + t.Commune + "%"
	case t.PropertySlug != "":
		return "%" + strings.ReplaceAll(t.PropertySlug, "-", "%") + "%"
	default:
		return "%" + t.Normalized + "%"
	}
}

// KeyPattern is an ILIKE pattern for property keys.
func (t Terms) KeyPattern() string {
	if t.PropertySlug != "" {
		return "%" + t.PropertySlug + "%"
	}
	return "%" + strings.ReplaceAll(t.Normalized, " ", "-") + "%"
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		address      string
		streetNumber string
		commune      string
		slug         string
	}{
		{
			name:         "lower-case query takes the word after the street number",
			query:        "rendement avenue de la gare 12 martigny",
			address:      "avenue de la gare 12",
			streetNumber: "12",
			commune:      "Martigny",
			slug:         "avenue-gare-12-martigny",
		},
		{
			name:         "capitalized commune",
			query:        "État locatif rue du Lac 5 Sion",
			address:      "rue du lac 5",
			streetNumber: "5",
			commune:      "Sion",
			slug:         "rue-lac-5-sion",
		},
		{
			name:    "stop word truncates the address",
			query:   "analyse avenue de France loyer Genève",
			address: "avenue de france",
			commune: "Genève",
			slug:    "avenue-france-geneve",
		},
		{
			name:    "no address",
			query:   "Quels sont les locataires à Martigny?",
			commune: "Martigny",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := ExtractTerms(tt.query)
			assert.Equal(t, tt.address, terms.Address)
			assert.Equal(t, tt.streetNumber, terms.StreetNumber)
			assert.Equal(t, tt.commune, terms.Commune)
			if tt.slug != "" {
				assert.Equal(t, tt.slug, terms.PropertySlug)
			}
			assert.LessOrEqual(t, len(strings.Split(terms.PropertySlug, "-")), maxSlugTokens)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "etat locatif geneve", Normalize("  État   Locatif\tGenève "))
	assert.Equal(t, "", Normalize(""))
}

func TestExtractTerms_Patterns(t *testing.T) {
	terms := ExtractTerms("rendement avenue de la gare 12 martigny")
	assert.Equal(t, "%avenue%gare%12%", terms.FilePattern())
	assert.Equal(t, "%avenue-gare-12-martigny%", terms.KeyPattern())

	commune := ExtractTerms("locataires Martigny")
	assert.Equal(t, "%Martigny%", commune.FilePattern())
}

func TestExtractTerms_SlugIsBounded(t *testing.T) {
	terms := ExtractTerms("portefeuille alpha beta gamma delta epsilon zeta eta theta iota kappa")
	assert.Equal(t, "alpha-beta-gamma-delta-epsilon-zeta-eta-theta", terms.PropertySlug)
}

func TestParseIntent(t *testing.T) {
	got, ok := ParseIntent(" Land-Registry ")
	assert.True(t, ok)
	assert.Equal(t, IntentLandRegistry, got)

	_, ok = ParseIntent("weather")
	assert.False(t, ok)
	assert.Len(t, AllIntents(), 7)
}

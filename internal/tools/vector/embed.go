package vector

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("text has no indexable terms")

// HashEmbedder maps text to a fixed-size vector by hashing accent-folded
// terms and character trigrams. It needs no model and is deterministic,
// which makes it the default for local runs and tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates an embedder producing dims-sized vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Func adapts the embedder to chromem.
func (e *HashEmbedder) Func() chromem.EmbeddingFunc {
	return e.Embed
}

// Embed returns a unit-length vector for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil, ErrEmptyText
	}
	vec := make([]float32, e.dims)
	for _, term := range terms {
		e.add(vec, term, 1)
		padded := " " + term + " "
		for i := 0; i+3 <= len(padded); i++ {
			e.add(vec, padded[i:i+3], 0.5)
		}
	}

	var norm2 float64
	for _, v := range vec {
		norm2 += float64(v) * float64(v)
	}
	n := float32(math.Sqrt(norm2))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Terms lowercases and accent-folds text and splits it into words of at
// least two characters.
func Terms(text string) []string {
	folded, _, err := transform.String(folder, text)
	if err != nil {
		folded = text
	}
	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

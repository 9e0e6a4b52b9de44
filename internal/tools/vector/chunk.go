package vector

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk splits text on whitespace into passages of at most size runes.
// Consecutive passages share up to overlap runes of trailing words. A single
// word longer than size becomes its own passage.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{strings.Join(words, " ")}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		out   []string
		cur   []string
		runes int
	)
	flush := func() {
		out = append(out, strings.Join(cur, " "))
		var keep []string
		kept := 0
		for i := len(cur) - 1; i >= 0; i-- {
			n := utf8.RuneCountInString(cur[i]) + 1
			if kept+n > overlap {
				break
			}
			keep = append([]string{cur[i]}, keep...)
			kept += n
		}
		cur, runes = keep, kept
	}

	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if len(cur) > 0 && runes+n > size {
			flush()
		}
		cur = append(cur, w)
		runes += n + 1
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// Passages chunks one document into indexable passages whose IDs are
// "<id>#<n>".
func Passages(id, fileName, content string, metadata map[string]string, size, overlap int) []Document {
	chunks := Chunk(content, size, overlap)
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:       fmt.Sprintf("%s#%d", id, i),
			FileName: fileName,
			Content:  c,
			Metadata: metadata,
		}
	}
	return docs
}

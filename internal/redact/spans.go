package redact

import (
	"sort"

	"github.com/arclight-io/scrubber/pkg/detection"
)

// ReplaceSpans substitutes each entity's span in content with the
// replacement at the same index. Entity offsets and lengths are rune
// indices, as reported by the detector with UnicodeCodePoint indexing.
//
// Replacements are applied from the highest offset to the lowest so earlier
// spans keep their positions, which makes the result deterministic even when
// the same literal text appears elsewhere in the message. Spans that overlap
// an already-applied span are skipped (the later-offset span wins), as are
// spans that fall outside the content bounds.
func ReplaceSpans(content string, entities []detection.Entity, replacements []string) string {
	if len(entities) == 0 {
		return content
	}

	order := make([]int, len(entities))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entities[order[a]].Offset > entities[order[b]].Offset
	})

	runes := []rune(content)
	applied := len(runes) + 1

	for _, i := range order {
		start := entities[i].Offset
		end := start + entities[i].Length
		if start < 0 || entities[i].Length <= 0 || end > len(runes) {
			continue
		}
		if end > applied {
			continue
		}

		out := make([]rune, 0, len(runes)-entities[i].Length+len(replacements[i]))
		out = append(out, runes[:start]...)
		out = append(out, []rune(replacements[i])...)
		out = append(out, runes[end:]...)
		runes = out
		applied = start
	}

	return string(runes)
}

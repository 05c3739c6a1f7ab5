// Package docqa indexes documents into a local vector store and answers
// questions about them.
package docqa

import (
	"strings"
	"unicode/utf8"
)

// Splitter cuts text on a separator and packs the pieces into chunks of at
// most Size characters, repeating up to Overlap characters of the previous
// chunk at the start of the next. A single piece longer than Size becomes
// its own oversized chunk.
type Splitter struct {
	Separator string
	Size      int
	Overlap   int
}

// Split returns the chunks of text, trimmed and non-empty.
func (s Splitter) Split(text string) []string {
	var splits []string
	if s.Separator == "" {
		splits = strings.Split(text, "")
	} else {
		splits = strings.Split(text, s.Separator)
	}

	nonEmpty := splits[:0]
	for _, sp := range splits {
		if sp != "" {
			nonEmpty = append(nonEmpty, sp)
		}
	}
	return s.merge(nonEmpty)
}

func (s Splitter) merge(splits []string) []string {
	sepLen := utf8.RuneCountInString(s.Separator)
	var (
		chunks  []string
		current []string
		total   int
	)

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, sp := range splits {
		l := utf8.RuneCountInString(sp)
		if total+l+joinLen() > s.Size && len(current) > 0 {
			if c := strings.TrimSpace(strings.Join(current, s.Separator)); c != "" {
				chunks = append(chunks, c)
			}
			// Drop pieces from the front until what is left fits in the
			// overlap and leaves room for sp.
			for total > s.Overlap || (total > 0 && total+l+joinLen() > s.Size) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total += l + joinLen()
		current = append(current, sp)
	}

	if c := strings.TrimSpace(strings.Join(current, s.Separator)); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

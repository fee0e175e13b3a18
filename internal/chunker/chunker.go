// AngelaMos | 2026
// chunker.go

// Package chunker splits extracted document text into word-bounded
// segments sized for a single completion request.
package chunker

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

const DefaultMaxChunkSize = 8000

// Split walks text word by word (space delimited) and yields chunks whose
// character length stays below maxChunkSize. A word is never split; a word
// that alone reaches the limit is yielded as its own chunk. Joining the
// yielded chunks with single spaces reproduces text exactly.
func Split(text string, maxChunkSize int) iter.Seq[string] {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	return func(yield func(string) bool) {
		if text == "" {
			return
		}

		var (
			buf     strings.Builder
			bufLen  int
			open    bool
			emitted bool
		)

		for word := range strings.SplitSeq(text, " ") {
			wordLen := utf8.RuneCountInString(word)

			if open && bufLen+1+wordLen >= maxChunkSize {
				if !yield(buf.String()) {
					return
				}
				emitted = true
				buf.Reset()
				bufLen = 0
				open = false
			}

			if open {
				buf.WriteByte(' ')
				bufLen++
			}
			buf.WriteString(word)
			bufLen += wordLen
			open = true
		}

		if open && (bufLen > 0 || emitted) {
			yield(buf.String())
		}
	}
}

// Chunks collects Split into a slice.
func Chunks(text string, maxChunkSize int) []string {
	return slices.Collect(Split(text, maxChunkSize))
}

// Package storageserver implements the storage server's file engine: the
// sentence/word editing model, the metadata table, the per-file lock map,
// the WRITE transaction state machine, undo, checkpoints, and replication
// (spec.md §4.3/§4.4).
package storageserver

import "strings"

// IsDelimiter reports whether r ends a sentence (spec.md GLOSSARY: ".", "!", "?").
func IsDelimiter(r byte) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r byte) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// SplitSentences splits content into maximal substrings ending at a
// delimiter, inclusive of the delimiter. Each sentence after the first
// retains its original leading whitespace verbatim (that whitespace is the
// only thing separating it from the previous sentence, since sentences are
// later rejoined with no separator). If content ends with a non-empty
// trailing fragment that carries no delimiter, that fragment's leading
// whitespace is trimmed (spec.md §4.3) and it is appended as a final
// sentence; LastEndsWithDelimiter reports false in that case.
func SplitSentences(content string) []string {
	if content == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(content); i++ {
		if IsDelimiter(content[i]) {
			sentences = append(sentences, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		frag := strings.TrimLeft(content[start:], " \t\n\r\v\f")
		if frag != "" {
			sentences = append(sentences, frag)
		}
	}
	return sentences
}

// LastEndsWithDelimiter reports whether the final sentence in the slice
// ends with a delimiter character; an empty slice counts as "ends with
// delimiter" for the purposes of validating a WRITE at sentence 0 of an
// empty file (spec.md §4.3 step 4).
func LastEndsWithDelimiter(sentences []string) bool {
	if len(sentences) == 0 {
		return true
	}
	last := sentences[len(sentences)-1]
	return last != "" && IsDelimiter(last[len(last)-1])
}

// SplitLeadingWhitespace separates s into its leading whitespace run and
// the remainder, so a sentence can be edited by its words while its
// original separation from the previous sentence is preserved verbatim.
func SplitLeadingWhitespace(s string) (ws, rest string) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// SplitWords splits s into whitespace-separated tokens, additionally
// treating every delimiter character as its own single-character word even
// when it appears fused to adjacent text (spec.md §12: "end." becomes
// ["end", "."]).
func SplitWords(s string) []string {
	var words []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			words = append(words, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isSpace(c):
			flush()
		case IsDelimiter(c):
			flush()
			words = append(words, string(c))
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return words
}

func isDelimiterWord(w string) bool {
	return len(w) == 1 && IsDelimiter(w[0])
}

// JoinWords rejoins a word list into sentence text: words are separated by
// a single space, except no space is inserted immediately before a
// delimiter word (spec.md §4.3 "Joining rules").
func JoinWords(words []string) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 && !isDelimiterWord(w) {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}

// JoinSentences concatenates sentences with no separator: each sentence's
// own leading whitespace (preserved by SplitSentences/SplitLeadingWhitespace)
// is the only thing that separates it from its predecessor.
func JoinSentences(sentences []string) string {
	return strings.Join(sentences, "")
}

// SpliceWords inserts newWords at index within words, shifting later words
// right. index must be in [0, len(words)]; an out-of-range index is the
// caller's responsibility to reject before calling (spec.md §4.3 step 5:
// an out-of-range word index errors only that subquery, the transaction
// continues unaffected).
func SpliceWords(words []string, index int, newWords []string) ([]string, error) {
	if index < 0 || index > len(words) {
		return nil, ErrWordIndexOutOfRange
	}
	out := make([]string, 0, len(words)+len(newWords))
	out = append(out, words[:index]...)
	out = append(out, newWords...)
	out = append(out, words[index:]...)
	return out, nil
}

// EditSentence reparses sentence, splices newWords in at wordIndex, and
// rebuilds the sentence text with its original leading whitespace restored.
func EditSentence(sentence string, wordIndex int, newWords []string) (string, error) {
	ws, body := SplitLeadingWhitespace(sentence)
	words := SplitWords(body)
	spliced, err := SpliceWords(words, wordIndex, newWords)
	if err != nil {
		return "", err
	}
	return ws + JoinWords(spliced), nil
}

package memory

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/rs/zerolog/log"
)

var loadTokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// SplitSentences breaks text into trimmed sentences with the Punkt English
// model, so abbreviations like "Dr." or "e.g." stay inside their sentence.
// Blank lines and full-width terminators always end a sentence. A trailing
// fragment with no terminator is kept as its own sentence.
func SplitSentences(text string) []string {
	var out []string
	for _, block := range splitBlocks(text) {
		for _, s := range tokenize(block) {
			if s = strings.Join(strings.Fields(s), " "); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func tokenize(block string) []string {
	tokenizer, err := loadTokenizer()
	if err != nil {
		log.Warn().Err(err).Msg("Sentence model unavailable, storing block as one sentence")
		return []string{block}
	}

	var out []string
	for _, s := range tokenizer.Tokenize(block) {
		out = append(out, s.Text)
	}
	return out
}

// splitBlocks cuts text at blank lines and after full-width terminators.
func splitBlocks(text string) []string {
	var blocks []string
	var cur strings.Builder

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			blocks = append(blocks, cur.String())
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' && blankLineAt(runes, i) {
			flush()
			continue
		}
		cur.WriteRune(r)
		if isFullWidth(r) && (i+1 == len(runes) || !isFullWidth(runes[i+1])) {
			flush()
		}
	}
	flush()

	return blocks
}

// blankLineAt reports whether the newline at i is followed by another newline
// with only horizontal whitespace between them.
func blankLineAt(runes []rune, i int) bool {
	for j := i + 1; j < len(runes); j++ {
		switch runes[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

// isFullWidth terminators end a sentence without following whitespace
func isFullWidth(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

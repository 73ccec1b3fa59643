// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textnorm cleans raw abstract and keyword text before it is embedded.
// See docs/ARCHITECTURE § Embedding.
package textnorm

import (
	"html"
	"regexp"
	"strings"
)

// MinTokenLen is the shortest token kept by Normalize.
const MinTokenLen = 2

// Cleaning patterns, applied in declaration order.
var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	linkRe       = regexp.MustCompile(`https?://\S+|doi:\S+|arxiv:\S+`)
	numCiteRe    = regexp.MustCompile(`\[[0-9]+\]`)
	authorYearRe = regexp.MustCompile(`\(([^()]*\d{4}[^()]*)\)`)
	codeSpanRe   = regexp.MustCompile("`[^`]*`")
	symbolRe     = regexp.MustCompile(`[^a-zA-Z\s.,;:!?()\-]`)
	spaceRe      = regexp.MustCompile(`\s+`)

	// wordRe accepts plain words and hyphenated compounds ("state-of-the-art").
	wordRe = regexp.MustCompile(`^[a-z]+(?:-[a-z]+)*$`)

	alphaRe = regexp.MustCompile(`[a-zA-Z]+`)
)

const edgePunct = ".,;:!?()[]{}\"'"

// Normalize returns a lowercase, whitespace-collapsed token string with
// markup, links, citations, code spans, symbols, short tokens, and stopwords
// removed. An empty result means the text carries no usable signal.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = html.UnescapeString(text)
	text = tagRe.ReplaceAllString(text, " ")
	text = linkRe.ReplaceAllString(text, " ")
	text = numCiteRe.ReplaceAllString(text, " ")
	text = authorYearRe.ReplaceAllString(text, " ")
	text = codeSpanRe.ReplaceAllString(text, " ")
	text = symbolRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(strings.ToLower(spaceRe.ReplaceAllString(text, " ")))

	var out []string
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, edgePunct)
		if len(tok) < MinTokenLen {
			continue
		}
		if !wordRe.MatchString(tok) || IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// Tokens returns the lowercase alphabetic runs of text in order. Digits,
// hyphens, and punctuation all act as separators.
func Tokens(text string) []string {
	return alphaRe.FindAllString(strings.ToLower(text), -1)
}

// IsStopword reports whether word (already lowercase) is an English stopword.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// stopwords is the NLTK English stopword list without apostrophe forms,
// which the symbol pass already splits apart.
var stopwords = toSet(`i me my myself we our ours ourselves you your yours
yourself yourselves he him his himself she her hers herself it its itself
they them their theirs themselves what which who whom this that these those
am is are was were be been being have has had having do does did doing a an
the and but if or because as until while of at by for with about against
between into through during before after above below to from up down in out
on off over under again further then once here there when where why how all
any both each few more most other some such no nor not only own same so than
too very s t can will just don should now d ll m o re ve y ain aren couldn
didn doesn hadn hasn haven isn ma mightn mustn needn shan shouldn wasn weren
won wouldn`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

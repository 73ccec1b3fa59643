// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"strconv"
	"strings"
)

// RoundKind distinguishes phrase-position rounds from the keyword round.
type RoundKind string

const (
	KindPosition  RoundKind = "position"
	KindKeywords  RoundKind = "keywords"
	KindFlattened RoundKind = "flattened"
)

// Round is one relaxation search of a collection.
type Round struct {
	Kind RoundKind `json:"kind" yaml:"kind"`

	// Position is the 1-based phrase position for position rounds.
	Position int `json:"position,omitempty" yaml:"position,omitempty"`

	Tokens []string `json:"tokens" yaml:"tokens"`
}

// Label names the round in logs and reports.
func (r Round) Label() string {
	if r.Kind == KindPosition {
		return "position " + strconv.Itoa(r.Position)
	}
	return string(r.Kind)
}

// PositionGroups groups phrases by ordinal position: group i holds phrase i
// of every list that has one, in list order. Duplicates within a group are
// removed case-insensitively, keeping the first spelling. Blank phrases are
// ignored. Phrase N of one abstract is assumed, heuristically, to be
// thematically comparable to phrase N of another.
func PositionGroups(phraseLists [][]string) [][]string {
	positions := 0
	for _, l := range phraseLists {
		positions = max(positions, len(l))
	}

	var groups [][]string
	for pos := 0; pos < positions; pos++ {
		seen := make(map[string]bool)
		var group []string
		for _, l := range phraseLists {
			if pos >= len(l) {
				continue
			}
			p := strings.TrimSpace(l[pos])
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			group = append(group, p)
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

// BuildRounds returns one position round per phrase group followed by a
// keyword round when keywords is non-empty.
func BuildRounds(phraseLists [][]string, keywords []string) []Round {
	var rounds []Round
	for i, g := range PositionGroups(phraseLists) {
		rounds = append(rounds, Round{Kind: KindPosition, Position: i + 1, Tokens: g})
	}
	if len(keywords) > 0 {
		rounds = append(rounds, Round{Kind: KindKeywords, Tokens: append([]string(nil), keywords...)})
	}
	return rounds
}

// DedupeFold removes case-insensitive duplicates and blanks, keeping the
// first spelling of each.
func DedupeFold(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}


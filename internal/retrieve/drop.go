// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pdiddy/proxima/pkg/types"
)

// DropPolicy chooses which token to remove after an empty search. Drop
// returns an index into tokens, which always has at least two entries.
// Implementations must be safe for concurrent use.
type DropPolicy interface {
	Drop(round, step int, tokens []string) int
}

// RandomDrop removes a uniformly random token. Each (round, step) pair draws
// from its own PCG stream derived from Seed, so a fixed seed reproduces the
// same drops no matter how rounds are scheduled.
type RandomDrop struct {
	Seed uint64
}

// NewRandomDrop returns a RandomDrop. Seed 0 picks a seed from the clock.
func NewRandomDrop(seed uint64) RandomDrop {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return RandomDrop{Seed: seed}
}

// Drop implements DropPolicy.
func (p RandomDrop) Drop(round, step int, tokens []string) int {
	r := rand.New(rand.NewPCG(p.Seed, uint64(round)<<32|uint64(uint32(step))))
	return r.IntN(len(tokens))
}

// ReverseDrop removes the last token, so the earliest tokens survive longest.
type ReverseDrop struct{}

// Drop implements DropPolicy.
func (ReverseDrop) Drop(_, _ int, tokens []string) int {
	return len(tokens) - 1
}

// NewDropPolicy returns the policy registered under name. An empty name
// selects the random policy.
func NewDropPolicy(name types.DropPolicyName, seed uint64) (DropPolicy, error) {
	switch name {
	case types.DropRandom, "":
		return NewRandomDrop(seed), nil
	case types.DropReverse:
		return ReverseDrop{}, nil
	default:
		return nil, fmt.Errorf("unknown drop policy %q", name)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest sends periodic lists of newly published works to saved
// searches. Subscriptions live in SQLite; each run ranks works for every due
// subscription and hands the unseen ones to a Sink.
package digest

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/proxima/pkg/types"
)

// Frequency is how often a subscription receives digests.
type Frequency string

// FrequencyWeekly is the only schedule runs act on.
const FrequencyWeekly Frequency = "weekly"

// ErrInvalidSubscription means a subscription cannot be saved as given.
var ErrInvalidSubscription = errors.New("invalid subscription")

// Subscription is a saved search with a delivery address.
type Subscription struct {
	ID                string    `json:"id" yaml:"id"`
	Email             string    `json:"email" yaml:"email"`
	Name              string    `json:"name" yaml:"name"`
	Abstracts         []string  `json:"abstracts,omitempty" yaml:"abstracts,omitempty"`
	Keywords          []string  `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Verified          bool      `json:"verified" yaml:"verified"`
	VerificationToken string    `json:"-" yaml:"-"`
	Active            bool      `json:"active" yaml:"active"`
	Frequency         Frequency `json:"frequency" yaml:"frequency"`
	LastSentAt        time.Time `json:"last_sent_at,omitempty" yaml:"last_sent_at,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// NewSubscription returns an active, unverified weekly subscription with a
// fresh ID and verification token. Keywords are split on ";" and ",".
func NewSubscription(email, name string, abstracts, keywords []string, now time.Time) (Subscription, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: email %q: %v", ErrInvalidSubscription, email, err)
	}

	in := types.QueryInput{Abstracts: abstracts, Keywords: keywords}
	if len(in.CleanAbstracts()) == 0 && len(in.KeywordTokens()) == 0 {
		return Subscription{}, fmt.Errorf("%w: needs at least one abstract or keyword", ErrInvalidSubscription)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Your search"
	}
	return Subscription{
		ID:                uuid.NewString(),
		Email:             addr.Address,
		Name:              name,
		Abstracts:         in.CleanAbstracts(),
		Keywords:          in.KeywordTokens(),
		VerificationToken: uuid.NewString(),
		Active:            true,
		Frequency:         FrequencyWeekly,
		CreatedAt:         now.UTC(),
	}, nil
}

// QueryInput returns the pipeline input for a publication window ending at
// now and reaching back lookback.
func (s Subscription) QueryInput(now time.Time, lookback time.Duration) types.QueryInput {
	to := now.UTC()
	from := to.Add(-lookback)
	return types.QueryInput{
		Abstracts: s.Abstracts,
		Keywords:  s.Keywords,
		From:      time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC),
		To:        time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Due reports whether the subscription should receive a digest at now.
func (s Subscription) Due(now time.Time, interval time.Duration) bool {
	if !s.Verified || !s.Active || s.Frequency != FrequencyWeekly {
		return false
	}
	return s.LastSentAt.IsZero() || s.LastSentAt.Before(now.Add(-interval))
}

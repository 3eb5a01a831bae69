package storage

import (
	"context"
	"errors"
)

// Keys of the one-time acceptance flags.
const (
	TermsKey   = "terms-accepted-23-03-2025"
	PrivacyKey = "privacy-accepted-23-03-2025"
)

// Acceptance tracks whether the user accepted the terms and privacy policy.
type Acceptance struct {
	store *Store
}

// NewAcceptance wraps store.
func NewAcceptance(store *Store) *Acceptance {
	return &Acceptance{store: store}
}

func (a *Acceptance) flag(ctx context.Context, key string) (bool, error) {
	var v bool
	err := a.store.Get(ctx, key, &v)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return v, err
}

// TermsAccepted reports whether the terms were accepted.
func (a *Acceptance) TermsAccepted(ctx context.Context) (bool, error) {
	return a.flag(ctx, TermsKey)
}

// PrivacyAccepted reports whether the privacy policy was accepted.
func (a *Acceptance) PrivacyAccepted(ctx context.Context) (bool, error) {
	return a.flag(ctx, PrivacyKey)
}

// AcceptTerms records acceptance of the terms.
func (a *Acceptance) AcceptTerms(ctx context.Context) error {
	return a.store.Set(ctx, TermsKey, true)
}

// AcceptPrivacy records acceptance of the privacy policy.
func (a *Acceptance) AcceptPrivacy(ctx context.Context) error {
	return a.store.Set(ctx, PrivacyKey, true)
}

// Pending reports whether either document still needs acceptance.
func (a *Acceptance) Pending(ctx context.Context) (bool, error) {
	terms, err := a.TermsAccepted(ctx)
	if err != nil {
		return false, err
	}
	privacy, err := a.PrivacyAccepted(ctx)
	if err != nil {
		return false, err
	}
	return !terms || !privacy, nil
}

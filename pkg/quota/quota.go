// Package quota enforces subscription-tier book-creation limits and owns
// the user profile lifecycle around them.
package quota

import (
	"context"
	"fmt"
	"time"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/store"
)

// Anonymous sessions get one book and no persisted profile.
const anonymousBookAllowance = 1

// Unlimited tiers still store a positive counter so the remaining-books
// check stays uniform.
const effectivelyUnlimited = 999

// Decision is the outcome of a creation-quota check.
type Decision struct {
	CanCreate bool   `json:"canCreate"`
	Reason    string `json:"reason,omitempty"`
}

// Service applies quota policy over the profile store. The cache is
// optional; when present it is kept consistent with every persisted write.
type Service struct {
	store store.Store
	cache *store.Cache
}

// New constructs the quota service.
func New(st store.Store, cache *store.Cache) *Service {
	return &Service{store: st, cache: cache}
}

// CanCreateBook decides whether the caller may create another book. It
// fails closed: a missing profile denies creation rather than permitting it.
// Read-only apart from warming the profile cache.
func (s *Service) CanCreateBook(ctx context.Context, ident domain.Identity) (Decision, error) {
	if ident.Anonymous {
		count, err := s.store.CountBooksByOwner(ident.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("count books: %w", err)
		}
		if count >= anonymousBookAllowance {
			return Decision{
				CanCreate: false,
				Reason:    "Anonymous sessions allow 1 book. Create an account to keep writing.",
			}, nil
		}
		return Decision{CanCreate: true}, nil
	}

	profile, ok, err := s.lookupProfile(ctx, ident.ID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{CanCreate: false, Reason: "User profile not found"}, nil
	}
	if profile.BooksRemaining <= 0 {
		return Decision{
			CanCreate: false,
			Reason: fmt.Sprintf(
				"You've reached your limit for this period. Your subscription allows %s per month.",
				profile.SubscriptionTier.AllowanceLabel(),
			),
		}, nil
	}
	return Decision{CanCreate: true}, nil
}

// GetOrCreateProfile returns the caller's profile, creating a default
// Explorer profile on first fetch. Anonymous identities get an in-memory
// profile that is never persisted.
func (s *Service) GetOrCreateProfile(ctx context.Context, ident domain.Identity) (domain.UserProfile, error) {
	now := time.Now().UTC()
	if ident.Anonymous {
		return domain.UserProfile{
			UID:              ident.ID,
			Email:            ident.Email,
			DisplayName:      ident.DisplayName,
			SubscriptionTier: domain.TierExplorer,
			BooksRemaining:   anonymousBookAllowance,
			CreatedAt:        now,
			UpdatedAt:        now,
		}, nil
	}

	profile, ok, err := s.lookupProfile(ctx, ident.ID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if ok {
		return profile, nil
	}

	profile = domain.UserProfile{
		UID:              ident.ID,
		Email:            ident.Email,
		DisplayName:      ident.DisplayName,
		SubscriptionTier: domain.TierExplorer,
		BooksCreated:     0,
		BooksRemaining:   domain.TierExplorer.BooksPerMonth(),
		NextResetDate:    now.AddDate(0, 1, 0).Format(time.RFC3339),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveProfile(profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("create profile: %w", err)
	}
	s.cache.SetProfile(ctx, profile)
	return profile, nil
}

// UpdateUserBookCount records one successful book creation: booksCreated
// increments, booksRemaining decrements with a floor of 0. It re-reads the
// persisted record first so concurrent edits to unrelated fields survive.
// No-op for anonymous identities.
func (s *Service) UpdateUserBookCount(ctx context.Context, ident domain.Identity) error {
	if ident.Anonymous {
		return nil
	}
	profile, ok, err := s.store.GetProfile(ident.ID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return fmt.Errorf("profile %s: %w", ident.ID, store.ErrNotFound)
	}
	profile.BooksCreated++
	profile.BooksRemaining = max(0, profile.BooksRemaining-1)
	profile.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveProfile(profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.cache.SetProfile(ctx, profile)
	return nil
}

// ResetUserBookCount restores the monthly allowance and advances the reset
// date. Triggered externally (billing cron), never by the workflow.
func (s *Service) ResetUserBookCount(ctx context.Context, uid string) error {
	profile, ok, err := s.store.GetProfile(uid)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	allowance := profile.SubscriptionTier.BooksPerMonth()
	if allowance == domain.Unlimited {
		allowance = effectivelyUnlimited
	}
	now := time.Now().UTC()
	profile.BooksRemaining = allowance
	profile.NextResetDate = now.AddDate(0, 1, 0).Format(time.RFC3339)
	profile.UpdatedAt = now
	if err := s.store.SaveProfile(profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.cache.SetProfile(ctx, profile)
	return nil
}

func (s *Service) lookupProfile(ctx context.Context, uid string) (domain.UserProfile, bool, error) {
	if p, ok := s.cache.GetProfile(ctx, uid); ok {
		return p, true, nil
	}
	profile, ok, err := s.store.GetProfile(uid)
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("load profile: %w", err)
	}
	if ok {
		s.cache.SetProfile(ctx, profile)
	}
	return profile, ok, err
}

package quota

import (
	"context"
	"strings"
	"testing"
	"time"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/store"
)

func registered(id string) domain.Identity {
	return domain.Identity{ID: id, Email: id + "@example.com"}
}

func TestGetOrCreateProfileCreatesExplorerDefault(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)
	ctx := context.Background()

	profile, err := svc.GetOrCreateProfile(ctx, registered("user-1"))
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if profile.SubscriptionTier != domain.TierExplorer {
		t.Fatalf("default tier: got %s, want Explorer", profile.SubscriptionTier)
	}
	if profile.BooksRemaining != 1 || profile.BooksCreated != 0 {
		t.Fatalf("default counters: %+v", profile)
	}
	if _, err := time.Parse(time.RFC3339, profile.NextResetDate); err != nil {
		t.Fatalf("nextResetDate should be RFC3339: %q", profile.NextResetDate)
	}
	if _, ok, _ := st.GetProfile("user-1"); !ok {
		t.Fatalf("profile should be persisted")
	}

	// Second call returns the stored profile untouched.
	again, err := svc.GetOrCreateProfile(ctx, registered("user-1"))
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.NextResetDate != profile.NextResetDate {
		t.Fatalf("existing profile should not be recreated")
	}
}

func TestAnonymousProfileIsNeverPersisted(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)

	profile, err := svc.GetOrCreateProfile(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true})
	if err != nil {
		t.Fatalf("anonymous profile: %v", err)
	}
	if profile.BooksRemaining != 1 {
		t.Fatalf("anonymous allowance: got %d, want 1", profile.BooksRemaining)
	}
	if _, ok, _ := st.GetProfile("anon-1"); ok {
		t.Fatalf("anonymous profile must not be persisted")
	}
}

func TestCanCreateBookFailsClosedOnMissingProfile(t *testing.T) {
	svc := New(store.NewMemoryStore(), nil)
	decision, err := svc.CanCreateBook(context.Background(), registered("ghost"))
	if err != nil {
		t.Fatalf("can create: %v", err)
	}
	if decision.CanCreate {
		t.Fatalf("missing profile must deny creation")
	}
	if decision.Reason != "User profile not found" {
		t.Fatalf("reason: got %q", decision.Reason)
	}
}

func TestCanCreateBookExhaustedAllowance(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)
	ctx := context.Background()
	ident := registered("user-1")

	if _, err := svc.GetOrCreateProfile(ctx, ident); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	decision, err := svc.CanCreateBook(ctx, ident)
	if err != nil || !decision.CanCreate {
		t.Fatalf("fresh Explorer should be allowed: %+v err=%v", decision, err)
	}

	if err := svc.UpdateUserBookCount(ctx, ident); err != nil {
		t.Fatalf("record creation: %v", err)
	}
	decision, err = svc.CanCreateBook(ctx, ident)
	if err != nil {
		t.Fatalf("can create: %v", err)
	}
	if decision.CanCreate {
		t.Fatalf("exhausted Explorer should be denied")
	}
	if !strings.Contains(decision.Reason, "1 book per month") {
		t.Fatalf("reason should name the allowance: %q", decision.Reason)
	}
}

func TestAnonymousAllowanceCountsOwnedBooks(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)
	ctx := context.Background()
	ident := domain.Identity{ID: "anon-1", Anonymous: true}

	decision, err := svc.CanCreateBook(ctx, ident)
	if err != nil || !decision.CanCreate {
		t.Fatalf("anonymous first book should be allowed: %+v err=%v", decision, err)
	}
	if _, err := st.CreateBook(store.BookData{UserID: "anon-1", Title: "T", Type: "fiction", Category: "drama", ChapterCount: 1, AuthorName: "A"}); err != nil {
		t.Fatalf("create book: %v", err)
	}
	decision, err = svc.CanCreateBook(ctx, ident)
	if err != nil {
		t.Fatalf("can create: %v", err)
	}
	if decision.CanCreate {
		t.Fatalf("anonymous second book should be denied")
	}
	if !strings.Contains(decision.Reason, "Create an account") {
		t.Fatalf("reason should invite signup: %q", decision.Reason)
	}
}

func TestUpdateUserBookCountFloorsAtZero(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)
	ctx := context.Background()
	ident := registered("user-1")

	if _, err := svc.GetOrCreateProfile(ctx, ident); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := svc.UpdateUserBookCount(ctx, ident); err != nil {
			t.Fatalf("record creation %d: %v", i, err)
		}
	}
	profile, _, _ := st.GetProfile("user-1")
	if profile.BooksCreated != 3 {
		t.Fatalf("booksCreated: got %d, want 3", profile.BooksCreated)
	}
	if profile.BooksRemaining != 0 {
		t.Fatalf("booksRemaining must floor at 0, got %d", profile.BooksRemaining)
	}

	// Anonymous identities are a no-op and never create a record.
	if err := svc.UpdateUserBookCount(ctx, domain.Identity{ID: "anon-1", Anonymous: true}); err != nil {
		t.Fatalf("anonymous update should no-op: %v", err)
	}
}

func TestResetUserBookCountRestoresAllowance(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil)
	ctx := context.Background()

	profile := domain.UserProfile{
		UID:              "user-1",
		SubscriptionTier: domain.TierWriter,
		BooksCreated:     5,
		BooksRemaining:   0,
		NextResetDate:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := st.SaveProfile(profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := svc.ResetUserBookCount(ctx, "user-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _, _ := st.GetProfile("user-1")
	if got.BooksRemaining != 5 {
		t.Fatalf("writer reset: got %d remaining, want 5", got.BooksRemaining)
	}
	if got.BooksCreated != 5 {
		t.Fatalf("reset must not clear booksCreated history")
	}

	// Unlimited tiers get the stand-in counter.
	publisher := domain.UserProfile{UID: "user-2", SubscriptionTier: domain.TierPublisher}
	if err := st.SaveProfile(publisher); err != nil {
		t.Fatalf("seed publisher: %v", err)
	}
	if err := svc.ResetUserBookCount(ctx, "user-2"); err != nil {
		t.Fatalf("reset publisher: %v", err)
	}
	got, _, _ = st.GetProfile("user-2")
	if got.BooksRemaining != 999 {
		t.Fatalf("publisher reset: got %d remaining, want 999", got.BooksRemaining)
	}

	if err := svc.ResetUserBookCount(ctx, "ghost"); err == nil {
		t.Fatalf("reset of missing profile should error")
	}
}

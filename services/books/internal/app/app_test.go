package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/store"
)

func validInput(chapters int) CreateBookInput {
	return CreateBookInput{
		Title:        "The Long Road",
		Type:         "fiction",
		Category:     "adventure",
		ChapterCount: chapters,
		AuthorName:   "A. Writer",
	}
}

func TestCreateBookRecordsQuotaUsage(t *testing.T) {
	a, st := newTestApp(t, &genStub{})
	ctx := context.Background()
	ident := domain.Identity{ID: "user-1", Email: "u@example.com"}

	book, err := a.CreateBook(ctx, ident, validInput(3))
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.UserID != "user-1" || len(book.Chapters) != 3 {
		t.Fatalf("book not created as requested: %+v", book)
	}
	profile, ok, _ := st.GetProfile("user-1")
	if !ok {
		t.Fatalf("profile should be lazily created")
	}
	if profile.BooksCreated != 1 || profile.BooksRemaining != 0 {
		t.Fatalf("quota counters after creation: %+v", profile)
	}

	// Explorer allowance is one book per month.
	_, err = a.CreateBook(ctx, ident, validInput(1))
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("second create should hit quota, got %v", err)
	}
	if !strings.Contains(quotaErr.Reason, "1 book per month") {
		t.Fatalf("quota reason: %q", quotaErr.Reason)
	}
}

func TestCreateBookEnforcesChapterCeiling(t *testing.T) {
	a, _ := newTestApp(t, &genStub{})
	ident := domain.Identity{ID: "user-1", Email: "u@example.com"}

	_, err := a.CreateBook(context.Background(), ident, validInput(6))
	if err == nil || !strings.Contains(err.Error(), "chapters per book") {
		t.Fatalf("Explorer is capped at 5 chapters, got %v", err)
	}
}

func TestCreateBookAnonymousSingleBook(t *testing.T) {
	a, st := newTestApp(t, &genStub{})
	ctx := context.Background()
	ident := domain.Identity{ID: "anon-1", Anonymous: true}

	if _, err := a.CreateBook(ctx, ident, validInput(2)); err != nil {
		t.Fatalf("anonymous first book: %v", err)
	}
	if _, ok, _ := st.GetProfile("anon-1"); ok {
		t.Fatalf("anonymous creation must not persist a profile")
	}

	_, err := a.CreateBook(ctx, ident, validInput(1))
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("anonymous second book should hit quota, got %v", err)
	}
}

func TestCreateBookValidation(t *testing.T) {
	a, _ := newTestApp(t, &genStub{})
	ctx := context.Background()
	ident := domain.Identity{ID: "user-1"}

	bad := validInput(1)
	bad.Title = "   "
	if _, err := a.CreateBook(ctx, ident, bad); err == nil {
		t.Fatalf("blank title should be rejected")
	}
	bad = validInput(0)
	if _, err := a.CreateBook(ctx, ident, bad); err == nil {
		t.Fatalf("zero chapters should be rejected")
	}
}

func TestUpdateBookValidatesTransitions(t *testing.T) {
	a, st := newTestApp(t, &genStub{})
	ctx := context.Background()
	book := seedBook(t, st, 1)

	done := domain.BookCompleted
	if _, err := a.UpdateBook(ctx, book.ID, store.BookPatch{Status: &done}); err != nil {
		t.Fatalf("draft -> completed: %v", err)
	}
	draft := domain.BookDraft
	if _, err := a.UpdateBook(ctx, book.ID, store.BookPatch{Status: &draft}); err == nil {
		t.Fatalf("completed -> draft should be rejected")
	}
	if _, err := a.UpdateBook(ctx, "missing", store.BookPatch{Status: &done}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing book: got %v", err)
	}
}

func TestUpdateChapterValidatesTransitions(t *testing.T) {
	a, st := newTestApp(t, &genStub{})
	ctx := context.Background()
	book := seedBook(t, st, 1)

	completed := domain.ChapterCompleted
	if _, err := a.UpdateChapter(ctx, book.ID, "chapter-1", store.ChapterPatch{Status: &completed}); err == nil {
		t.Fatalf("incomplete -> completed skips generating and should be rejected")
	}
	title := "Renamed"
	updated, err := a.UpdateChapter(ctx, book.ID, "chapter-1", store.ChapterPatch{Title: &title})
	if err != nil {
		t.Fatalf("title edit: %v", err)
	}
	if ch, _ := updated.Chapter("chapter-1"); ch.Title != "Renamed" {
		t.Fatalf("title not applied: %+v", ch)
	}
	if _, err := a.UpdateChapter(ctx, book.ID, "chapter-9", store.ChapterPatch{Title: &title}); !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("missing chapter: got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	a, st := newTestApp(t, &genStub{})
	ctx := context.Background()
	book := seedBook(t, st, 1)

	if err := a.DeleteBook(ctx, book.ID, book.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.GetBook(book.ID); ok {
		t.Fatalf("book should be gone")
	}
	if err := a.DeleteBook(ctx, book.ID, book.UserID); err != nil {
		t.Fatalf("repeat delete should not error: %v", err)
	}
}

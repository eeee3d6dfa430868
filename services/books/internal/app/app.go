// Package app implements the book service use cases: book and chapter
// CRUD, quota-gated creation, the AI generation workflow, and exports.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/genapi"
	"bookkreate/pkg/quota"
	"bookkreate/pkg/storage"
	"bookkreate/pkg/store"
)

const defaultExportExpiry = 24 * time.Hour

// Options wires the app's collaborators. Store and Gen are required;
// Cache and Objects are optional (nil cache degrades to direct reads,
// nil object store disables exports).
type Options struct {
	Store        store.Store
	Cache        *store.Cache
	Gen          *genapi.Client
	Objects      storage.ObjectStore
	ExportExpiry time.Duration
}

// App holds the book service use cases.
type App struct {
	store        store.Store
	cache        *store.Cache
	gen          *genapi.Client
	quota        *quota.Service
	objects      storage.ObjectStore
	exportExpiry time.Duration
	slots        *slotGuard
}

// New constructs the app.
func New(opts Options) (*App, error) {
	if opts.Store == nil {
		return nil, errors.New("app requires a store")
	}
	if opts.Gen == nil {
		return nil, errors.New("app requires a generation client")
	}
	expiry := opts.ExportExpiry
	if expiry <= 0 {
		expiry = defaultExportExpiry
	}
	return &App{
		store:        opts.Store,
		cache:        opts.Cache,
		gen:          opts.Gen,
		quota:        quota.New(opts.Store, opts.Cache),
		objects:      opts.Objects,
		exportExpiry: expiry,
		slots:        newSlotGuard(),
	}, nil
}

// CreateBookInput is the caller-supplied metadata for a new book.
type CreateBookInput struct {
	Title            string `json:"title"`
	Type             string `json:"type"`
	Category         string `json:"category"`
	ChapterCount     int    `json:"chapterCount"`
	AuthorName       string `json:"authorName"`
	Acknowledgements string `json:"acknowledgements"`
}

func (in CreateBookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return errors.New("type is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return errors.New("category is required")
	}
	if strings.TrimSpace(in.AuthorName) == "" {
		return errors.New("authorName is required")
	}
	if in.ChapterCount < 1 {
		return errors.New("chapterCount must be at least 1")
	}
	return nil
}

// CreateBook checks the caller's creation quota and chapter ceiling,
// persists the new draft book, and records the creation against the quota.
func (a *App) CreateBook(ctx context.Context, ident domain.Identity, in CreateBookInput) (domain.Book, error) {
	if err := in.validate(); err != nil {
		return domain.Book{}, err
	}

	profile, err := a.quota.GetOrCreateProfile(ctx, ident)
	if err != nil {
		return domain.Book{}, err
	}
	if ceiling := profile.SubscriptionTier.MaxChapters(); ceiling != domain.Unlimited && in.ChapterCount > ceiling {
		return domain.Book{}, fmt.Errorf("your %s plan allows up to %d chapters per book", profile.SubscriptionTier, ceiling)
	}

	decision, err := a.quota.CanCreateBook(ctx, ident)
	if err != nil {
		return domain.Book{}, err
	}
	if !decision.CanCreate {
		return domain.Book{}, &QuotaError{Reason: decision.Reason}
	}

	book, err := a.store.CreateBook(store.BookData{
		UserID:           ident.ID,
		Title:            strings.TrimSpace(in.Title),
		Type:             in.Type,
		Category:         in.Category,
		ChapterCount:     in.ChapterCount,
		AuthorName:       in.AuthorName,
		Acknowledgements: in.Acknowledgements,
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	if err := a.quota.UpdateUserBookCount(ctx, ident); err != nil {
		return domain.Book{}, fmt.Errorf("record book creation: %w", err)
	}
	a.cache.SetBook(ctx, book)
	return book, nil
}

// GetBook returns a book by id, consulting the cache first.
func (a *App) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	if book, ok := a.cache.GetBook(ctx, id); ok {
		return book, true, nil
	}
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("load book: %w", err)
	}
	if ok {
		a.cache.SetBook(ctx, book)
	}
	return book, ok, nil
}

// ListBooks returns the owner's books, newest first.
func (a *App) ListBooks(ctx context.Context, ownerID string) ([]domain.Book, error) {
	if books, ok := a.cache.GetBooksByOwner(ctx, ownerID); ok {
		return books, nil
	}
	books, err := a.store.ListBooksByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	a.cache.SetBooksByOwner(ctx, ownerID, books)
	return books, nil
}

// UpdateBook applies a metadata patch. Status changes must follow the
// forward-only book lifecycle.
func (a *App) UpdateBook(ctx context.Context, id string, patch store.BookPatch) (domain.Book, error) {
	if patch.Status != nil {
		current, ok, err := a.store.GetBook(id)
		if err != nil {
			return domain.Book{}, fmt.Errorf("load book: %w", err)
		}
		if !ok {
			return domain.Book{}, ErrBookNotFound
		}
		if err := domain.TransitionBook(current.Status, *patch.Status); err != nil {
			return domain.Book{}, err
		}
	}
	book, err := a.store.UpdateBook(id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	a.cache.SetBook(ctx, book)
	return book, nil
}

// DeleteBook removes a book and its cache entries. Deleting a missing
// book is not an error.
func (a *App) DeleteBook(ctx context.Context, id, ownerID string) error {
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	a.cache.DeleteBook(ctx, id, ownerID)
	return nil
}

// UpdateChapter applies a manual chapter edit. Status changes must follow
// the chapter lifecycle.
func (a *App) UpdateChapter(ctx context.Context, bookID, chapterID string, patch store.ChapterPatch) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	chapter, ok := book.Chapter(chapterID)
	if !ok {
		return domain.Book{}, ErrChapterNotFound
	}
	if patch.Status != nil {
		if err := domain.TransitionChapter(chapter.Status, *patch.Status); err != nil {
			return domain.Book{}, err
		}
	}
	book, err = a.store.UpdateChapter(bookID, chapterID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrChapterNotFound
		}
		return domain.Book{}, fmt.Errorf("update chapter: %w", err)
	}
	a.cache.SetBook(ctx, book)
	return book, nil
}

// Profile returns the caller's profile, creating a default one for
// first-time registered users.
func (a *App) Profile(ctx context.Context, ident domain.Identity) (domain.UserProfile, error) {
	return a.quota.GetOrCreateProfile(ctx, ident)
}

// CreationQuota reports whether the caller may create another book.
func (a *App) CreationQuota(ctx context.Context, ident domain.Identity) (quota.Decision, error) {
	return a.quota.CanCreateBook(ctx, ident)
}

// ResetQuota restores a user's monthly allowance. Called by the billing
// cron, never by the workflow.
func (a *App) ResetQuota(ctx context.Context, uid string) error {
	err := a.quota.ResetUserBookCount(ctx, uid)
	if err != nil && errors.Is(err, store.ErrNotFound) {
		return ErrProfileNotFound
	}
	return err
}

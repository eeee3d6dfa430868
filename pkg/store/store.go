package store

import (
	"errors"
	"fmt"
	"time"

	"bookkreate/pkg/domain"
)

// ErrNotFound is returned by mutations targeting a missing book or chapter.
var ErrNotFound = errors.New("not found")

// Store defines persistence operations for books and user profiles.
type Store interface {
	// books
	CreateBook(data BookData) (domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)
	ListBooksByOwner(ownerID string) ([]domain.Book, error)
	CountBooksByOwner(ownerID string) (int, error)
	UpdateBook(id string, patch BookPatch) (domain.Book, error)
	DeleteBook(id string) error
	UpdateChapter(bookID, chapterID string, patch ChapterPatch) (domain.Book, error)

	// profiles
	GetProfile(uid string) (domain.UserProfile, bool, error)
	SaveProfile(p domain.UserProfile) error
}

// BookData carries the immutable-at-creation metadata for a new book.
type BookData struct {
	UserID           string
	Title            string
	Type             string
	Category         string
	ChapterCount     int
	AuthorName       string
	Acknowledgements string
}

// BookPatch merges non-nil fields into a stored book. A non-nil Chapters
// slice replaces the whole chapter array.
type BookPatch struct {
	Title            *string
	CoverDescription *string
	BookDescription  *string
	EndPageContent   *string
	Acknowledgements *string
	Status           *domain.BookStatus
	Chapters         []domain.Chapter
}

// ChapterPatch merges non-nil fields into one chapter of a book.
type ChapterPatch struct {
	Title     *string
	Summary   *string
	Content   *string
	WordCount *int
	Status    *domain.ChapterStatus
}

// newBook synthesizes the book document persisted by CreateBook: N chapters
// with dense 1-based order, ids "chapter-{order}", everything blank and
// incomplete, book status draft.
func newBook(data BookData, now time.Time) domain.Book {
	chapters := make([]domain.Chapter, 0, data.ChapterCount)
	for i := 1; i <= data.ChapterCount; i++ {
		chapters = append(chapters, domain.Chapter{
			ID:     fmt.Sprintf("chapter-%d", i),
			Title:  fmt.Sprintf("Chapter %d", i),
			Status: domain.ChapterIncomplete,
			Order:  i,
		})
	}
	return domain.Book{
		ID:               NewID(),
		UserID:           data.UserID,
		Title:            data.Title,
		Type:             data.Type,
		Category:         data.Category,
		ChapterCount:     data.ChapterCount,
		AuthorName:       data.AuthorName,
		Acknowledgements: data.Acknowledgements,
		Chapters:         chapters,
		Status:           domain.BookDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func applyBookPatch(b domain.Book, patch BookPatch, now time.Time) domain.Book {
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.CoverDescription != nil {
		b.CoverDescription = *patch.CoverDescription
	}
	if patch.BookDescription != nil {
		b.BookDescription = *patch.BookDescription
	}
	if patch.EndPageContent != nil {
		b.EndPageContent = *patch.EndPageContent
	}
	if patch.Acknowledgements != nil {
		b.Acknowledgements = *patch.Acknowledgements
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Chapters != nil {
		b.Chapters = patch.Chapters
	}
	b.UpdatedAt = now
	return b
}

// applyChapterPatch merges the patch into the matching chapter, leaving the
// others untouched. Reports whether the chapter was found.
func applyChapterPatch(b domain.Book, chapterID string, patch ChapterPatch, now time.Time) (domain.Book, bool) {
	found := false
	chapters := make([]domain.Chapter, len(b.Chapters))
	for i, ch := range b.Chapters {
		if ch.ID == chapterID {
			found = true
			if patch.Title != nil {
				ch.Title = *patch.Title
			}
			if patch.Summary != nil {
				ch.Summary = *patch.Summary
			}
			if patch.Content != nil {
				ch.Content = *patch.Content
			}
			if patch.WordCount != nil {
				ch.WordCount = *patch.WordCount
			}
			if patch.Status != nil {
				ch.Status = *patch.Status
			}
		}
		chapters[i] = ch
	}
	if !found {
		return b, false
	}
	b.Chapters = chapters
	b.UpdatedAt = now
	return b, true
}

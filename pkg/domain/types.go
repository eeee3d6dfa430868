package domain

import (
	"fmt"
	"time"
)

type BookStatus string

const (
	BookDraft      BookStatus = "draft"
	BookInProgress BookStatus = "in-progress"
	BookCompleted  BookStatus = "completed"
)

type ChapterStatus string

const (
	ChapterIncomplete ChapterStatus = "incomplete"
	ChapterGenerating ChapterStatus = "generating"
	ChapterCompleted  ChapterStatus = "completed"
)

// Book is a user-owned book document. The chapter slice is order-significant
// but not necessarily sorted in storage; Order on each chapter defines the
// narrative sequence.
type Book struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Title            string     `json:"title"`
	Type             string     `json:"type"`
	Category         string     `json:"category"`
	ChapterCount     int        `json:"chapterCount"`
	AuthorName       string     `json:"authorName"`
	Acknowledgements string     `json:"acknowledgements,omitempty"`
	CoverDescription string     `json:"coverDescription,omitempty"`
	BookDescription  string     `json:"bookDescription,omitempty"`
	EndPageContent   string     `json:"endPageContent,omitempty"`
	Chapters         []Chapter  `json:"chapters"`
	Status           BookStatus `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Chapter ids are assigned at book creation ("chapter-{order}") and stay
// stable regardless of storage position.
type Chapter struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Summary   string        `json:"summary,omitempty"`
	Content   string        `json:"content,omitempty"`
	WordCount int           `json:"wordCount,omitempty"`
	Status    ChapterStatus `json:"status"`
	Order     int           `json:"order"`
}

// UserProfile tracks a registered user's subscription and usage counters.
// Anonymous users never persist one.
type UserProfile struct {
	UID              string    `json:"uid"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName,omitempty"`
	SubscriptionTier Tier      `json:"subscriptionTier"`
	BooksCreated     int       `json:"booksCreated"`
	BooksRemaining   int       `json:"booksRemaining"`
	NextResetDate    string    `json:"nextResetDate,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Identity is what the identity provider asserts about a caller.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Anonymous   bool      `json:"anonymous"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Chapter returns the chapter with the given id and whether it exists.
func (b Book) Chapter(chapterID string) (Chapter, bool) {
	for _, ch := range b.Chapters {
		if ch.ID == chapterID {
			return ch, true
		}
	}
	return Chapter{}, false
}

// AllChaptersCompleted reports whether every chapter has completed status.
// A book with no chapters is never considered complete.
func (b Book) AllChaptersCompleted() bool {
	if len(b.Chapters) == 0 {
		return false
	}
	for _, ch := range b.Chapters {
		if ch.Status != ChapterCompleted {
			return false
		}
	}
	return true
}

// TransitionBook validates a book status change. Book status only moves
// forward: draft -> in-progress -> completed.
func TransitionBook(from, to BookStatus) error {
	if from == to {
		return nil
	}
	ok := false
	switch from {
	case BookDraft:
		ok = to == BookInProgress || to == BookCompleted
	case BookInProgress:
		ok = to == BookCompleted
	case BookCompleted:
		ok = false
	}
	if !ok {
		return fmt.Errorf("illegal book transition %s -> %s", from, to)
	}
	return nil
}

// TransitionChapter validates a chapter status change. The only backward
// edge is generating -> incomplete, taken when generation fails.
func TransitionChapter(from, to ChapterStatus) error {
	if from == to {
		return nil
	}
	ok := false
	switch from {
	case ChapterIncomplete:
		ok = to == ChapterGenerating
	case ChapterGenerating:
		ok = to == ChapterCompleted || to == ChapterIncomplete
	case ChapterCompleted:
		ok = false
	}
	if !ok {
		return fmt.Errorf("illegal chapter transition %s -> %s", from, to)
	}
	return nil
}

func ParseBookStatus(s string) (BookStatus, bool) {
	switch BookStatus(s) {
	case BookDraft, BookInProgress, BookCompleted:
		return BookStatus(s), true
	}
	return "", false
}

func ParseChapterStatus(s string) (ChapterStatus, bool) {
	switch ChapterStatus(s) {
	case ChapterIncomplete, ChapterGenerating, ChapterCompleted:
		return ChapterStatus(s), true
	}
	return "", false
}

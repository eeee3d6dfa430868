package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/genapi"
	"bookkreate/pkg/store"
)

// GenerateBookPlan asks the AI service for a full plan (cover, description,
// per-chapter title/summary, end page) and merges it into the book in one
// write. Nothing is persisted until the plan call succeeds, so a failed call
// leaves the book exactly as it was.
func (a *App) GenerateBookPlan(ctx context.Context, bookID string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if strings.TrimSpace(book.BookDescription) != "" {
		return domain.Book{}, ErrPlanExists
	}

	release, err := a.slots.acquire(bookID, planSlotID)
	if err != nil {
		return domain.Book{}, err
	}
	defer release()

	plan, err := a.gen.GenerateBookPlan(ctx, genapi.PlanRequest{
		Title:            book.Title,
		Type:             book.Type,
		Category:         book.Category,
		ChapterCount:     book.ChapterCount,
		AuthorName:       book.AuthorName,
		Acknowledgements: book.Acknowledgements,
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("generate book plan: %w", err)
	}

	status := domain.BookInProgress
	if err := domain.TransitionBook(book.Status, status); err != nil {
		return domain.Book{}, err
	}
	updated, err := a.store.UpdateBook(bookID, store.BookPatch{
		CoverDescription: &plan.CoverDescription,
		BookDescription:  &plan.BookDescription,
		EndPageContent:   &plan.EndPageContent,
		Status:           &status,
		Chapters:         mergePlan(book.Chapters, plan.Chapters),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("save book plan: %w", err)
	}
	a.cache.SetBook(ctx, updated)
	return updated, nil
}

// mergePlan copies planned titles and summaries onto the existing chapters.
// A planned chapter matches by order (1-based position) first, then by id;
// unmatched chapters keep their placeholder title. Merged chapters reset to
// incomplete.
func mergePlan(chapters []domain.Chapter, planned []genapi.ChapterPlan) []domain.Chapter {
	merged := make([]domain.Chapter, len(chapters))
	for i, ch := range chapters {
		if p, ok := matchPlan(planned, i+1, ch.ID); ok {
			ch.Title = p.Title
			ch.Summary = p.Summary
			ch.Status = domain.ChapterIncomplete
		}
		merged[i] = ch
	}
	return merged
}

func matchPlan(planned []genapi.ChapterPlan, order int, id string) (genapi.ChapterPlan, bool) {
	for _, p := range planned {
		if p.Order == order {
			return p, true
		}
	}
	for _, p := range planned {
		if p.ID != "" && p.ID == id {
			return p, true
		}
	}
	return genapi.ChapterPlan{}, false
}

// GenerateChapter asks the AI service for one chapter's content. The chapter
// is persisted as generating before the call so readers see progress; on
// success it moves to completed (and the book to completed when it was the
// last one), on failure it reverts to incomplete. A chapter that is already
// completed returns immediately without calling the service.
func (a *App) GenerateChapter(ctx context.Context, bookID, chapterID string) (domain.Book, error) {
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

	release, err := a.slots.acquire(bookID, chapterID)
	if err != nil {
		return domain.Book{}, err
	}
	defer release()

	if chapter.Status == domain.ChapterCompleted {
		return book, nil
	}
	generating := domain.ChapterGenerating
	if err := domain.TransitionChapter(chapter.Status, generating); err != nil {
		return domain.Book{}, err
	}
	book, err = a.store.UpdateChapter(bookID, chapterID, store.ChapterPatch{Status: &generating})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrChapterNotFound
		}
		return domain.Book{}, fmt.Errorf("mark chapter generating: %w", err)
	}
	a.cache.SetBook(ctx, book)

	result, err := a.gen.GenerateChapter(ctx, genapi.ChapterRequest{
		Title:                    book.Title,
		ChapterTitle:             chapter.Title,
		ChapterSummary:           chapter.Summary,
		ChapterIndex:             chapter.Order,
		TotalChapters:            len(book.Chapters),
		BookType:                 book.Type,
		BookCategory:             book.Category,
		AuthorName:               book.AuthorName,
		PreviousChapterSummaries: previousSummaries(book.Chapters, chapter.Order),
	})
	if err != nil {
		incomplete := domain.ChapterIncomplete
		if reverted, revertErr := a.store.UpdateChapter(bookID, chapterID, store.ChapterPatch{Status: &incomplete}); revertErr == nil {
			a.cache.SetBook(ctx, reverted)
		}
		return domain.Book{}, fmt.Errorf("generate chapter: %w", err)
	}

	completed := domain.ChapterCompleted
	book, err = a.store.UpdateChapter(bookID, chapterID, store.ChapterPatch{
		Content:   &result.Content,
		WordCount: &result.WordCount,
		Status:    &completed,
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("save chapter: %w", err)
	}
	a.cache.SetBook(ctx, book)

	if book.AllChaptersCompleted() && book.Status != domain.BookCompleted {
		done := domain.BookCompleted
		if domain.TransitionBook(book.Status, done) == nil {
			book, err = a.store.UpdateBook(bookID, store.BookPatch{Status: &done})
			if err != nil {
				return domain.Book{}, fmt.Errorf("complete book: %w", err)
			}
			a.cache.SetBook(ctx, book)
		}
	}
	return book, nil
}

// previousSummaries collects the summaries of chapters that precede the
// target order, keyed by their decimal order. Chapters without a summary
// are skipped; nil means no usable context.
func previousSummaries(chapters []domain.Chapter, targetOrder int) map[string]string {
	var prev map[string]string
	for _, ch := range chapters {
		if ch.Order >= targetOrder || strings.TrimSpace(ch.Summary) == "" {
			continue
		}
		if prev == nil {
			prev = make(map[string]string)
		}
		prev[strconv.Itoa(ch.Order)] = ch.Summary
	}
	return prev
}

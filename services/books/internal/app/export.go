package app

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"bookkreate/pkg/domain"
)

// Export is a presigned download for a compiled book.
type Export struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ExportBook compiles a completed book into a plain-text manuscript, uploads
// it to object storage, and returns a presigned download URL. Only completed
// books export.
func (a *App) ExportBook(ctx context.Context, bookID string) (Export, error) {
	if a.objects == nil {
		return Export{}, ErrExportUnavailable
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return Export{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return Export{}, ErrBookNotFound
	}
	if book.Status != domain.BookCompleted {
		return Export{}, ErrExportNotReady
	}

	filename := exportFilename(book.Title)
	key := path.Join("exports", book.ID, filename)
	if err := a.objects.Put(ctx, key, []byte(renderManuscript(book)), "text/plain; charset=utf-8"); err != nil {
		return Export{}, fmt.Errorf("upload export: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, a.exportExpiry)
	if err != nil {
		return Export{}, fmt.Errorf("presign export: %w", err)
	}
	return Export{URL: url, Filename: filename}, nil
}

// renderManuscript lays the book out as front matter, chapters in narrative
// order, then end page and acknowledgements.
func renderManuscript(book domain.Book) string {
	chapters := make([]domain.Chapter, len(book.Chapters))
	copy(chapters, book.Chapters)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nby %s\n\n", book.Title, book.AuthorName)
	if book.BookDescription != "" {
		fmt.Fprintf(&b, "%s\n\n", book.BookDescription)
	}
	for _, ch := range chapters {
		fmt.Fprintf(&b, "%s\n\n%s\n\n", ch.Title, ch.Content)
	}
	if book.EndPageContent != "" {
		fmt.Fprintf(&b, "%s\n\n", book.EndPageContent)
	}
	if book.Acknowledgements != "" {
		fmt.Fprintf(&b, "Acknowledgements\n\n%s\n", book.Acknowledgements)
	}
	return b.String()
}

func exportFilename(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "book"
	}
	return slug + ".txt"
}

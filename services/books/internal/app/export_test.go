package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookkreate/pkg/domain"
	"bookkreate/pkg/genapi"
	"bookkreate/pkg/store"
)

type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, ok := m.objects[key]; !ok {
		return "", errors.New("object missing")
	}
	return "https://objects.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func newExportApp(t *testing.T, objects *memObjects) (*App, *store.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer((&genStub{}).handler())
	t.Cleanup(srv.Close)
	st := store.NewMemoryStore()
	opts := Options{Store: st, Gen: genapi.NewClient(srv.URL)}
	if objects != nil {
		opts.Objects = objects
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, st
}

func completeBook(t *testing.T, st *store.MemoryStore, book domain.Book) domain.Book {
	t.Helper()
	for _, ch := range book.Chapters {
		generating := domain.ChapterGenerating
		if _, err := st.UpdateChapter(book.ID, ch.ID, store.ChapterPatch{Status: &generating}); err != nil {
			t.Fatalf("mark generating: %v", err)
		}
		content := "Content of " + ch.Title + "."
		completed := domain.ChapterCompleted
		if _, err := st.UpdateChapter(book.ID, ch.ID, store.ChapterPatch{Content: &content, Status: &completed}); err != nil {
			t.Fatalf("complete chapter: %v", err)
		}
	}
	done := domain.BookCompleted
	updated, err := st.UpdateBook(book.ID, store.BookPatch{Status: &done})
	if err != nil {
		t.Fatalf("complete book: %v", err)
	}
	return updated
}

func TestExportBookUploadsManuscript(t *testing.T) {
	objects := newMemObjects()
	a, st := newExportApp(t, objects)
	book := seedBook(t, st, 2)
	completeBook(t, st, book)

	export, err := a.ExportBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.Filename != "the-long-road.txt" {
		t.Fatalf("filename: got %q", export.Filename)
	}
	if !strings.HasPrefix(export.URL, "https://objects.test/exports/"+book.ID+"/") {
		t.Fatalf("url: got %q", export.URL)
	}
	data, ok := objects.objects["exports/"+book.ID+"/"+export.Filename]
	if !ok {
		t.Fatalf("manuscript not uploaded")
	}
	text := string(data)
	if !strings.HasPrefix(text, "The Long Road") {
		t.Fatalf("manuscript should open with the title: %q", text)
	}
	if strings.Index(text, "Chapter 1") > strings.Index(text, "Chapter 2") {
		t.Fatalf("chapters out of order:\n%s", text)
	}
}

func TestExportBookRequiresCompletion(t *testing.T) {
	a, st := newExportApp(t, newMemObjects())
	book := seedBook(t, st, 1)

	if _, err := a.ExportBook(context.Background(), book.ID); !errors.Is(err, ErrExportNotReady) {
		t.Fatalf("draft export: got %v, want ErrExportNotReady", err)
	}
	if _, err := a.ExportBook(context.Background(), "missing"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing export: got %v, want ErrBookNotFound", err)
	}
}

func TestExportBookUnavailableWithoutObjectStore(t *testing.T) {
	a, st := newExportApp(t, nil)
	book := seedBook(t, st, 1)
	completeBook(t, st, book)

	if _, err := a.ExportBook(context.Background(), book.ID); !errors.Is(err, ErrExportUnavailable) {
		t.Fatalf("export without storage: got %v, want ErrExportUnavailable", err)
	}
}

func TestExportFilenameSlug(t *testing.T) {
	cases := map[string]string{
		"The Long Road":   "the-long-road.txt",
		"  Spaces  ":      "spaces.txt",
		"Ünïcode! Title?": "ncode-title.txt",
		"!!!":             "book.txt",
	}
	for title, want := range cases {
		if got := exportFilename(title); got != want {
			t.Fatalf("slug of %q: got %q, want %q", title, got, want)
		}
	}
}

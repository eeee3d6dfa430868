package domain

import "testing"

func TestTransitionBookForwardOnly(t *testing.T) {
	allowed := []struct{ from, to BookStatus }{
		{BookDraft, BookDraft},
		{BookDraft, BookInProgress},
		{BookDraft, BookCompleted},
		{BookInProgress, BookCompleted},
		{BookCompleted, BookCompleted},
	}
	for _, tc := range allowed {
		if err := TransitionBook(tc.from, tc.to); err != nil {
			t.Fatalf("transition %s -> %s should be allowed: %v", tc.from, tc.to, err)
		}
	}
	blocked := []struct{ from, to BookStatus }{
		{BookInProgress, BookDraft},
		{BookCompleted, BookDraft},
		{BookCompleted, BookInProgress},
	}
	for _, tc := range blocked {
		if err := TransitionBook(tc.from, tc.to); err == nil {
			t.Fatalf("transition %s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionChapterOnlyBackwardEdgeIsFailure(t *testing.T) {
	if err := TransitionChapter(ChapterIncomplete, ChapterGenerating); err != nil {
		t.Fatalf("incomplete -> generating should be allowed: %v", err)
	}
	if err := TransitionChapter(ChapterGenerating, ChapterCompleted); err != nil {
		t.Fatalf("generating -> completed should be allowed: %v", err)
	}
	if err := TransitionChapter(ChapterGenerating, ChapterIncomplete); err != nil {
		t.Fatalf("generating -> incomplete (failure revert) should be allowed: %v", err)
	}
	if err := TransitionChapter(ChapterIncomplete, ChapterCompleted); err == nil {
		t.Fatalf("incomplete -> completed should be rejected")
	}
	if err := TransitionChapter(ChapterCompleted, ChapterGenerating); err == nil {
		t.Fatalf("completed -> generating should be rejected")
	}
	if err := TransitionChapter(ChapterCompleted, ChapterIncomplete); err == nil {
		t.Fatalf("completed -> incomplete should be rejected")
	}
}

func TestAllChaptersCompleted(t *testing.T) {
	book := Book{}
	if book.AllChaptersCompleted() {
		t.Fatalf("book with no chapters must never report completed")
	}
	book.Chapters = []Chapter{
		{ID: "chapter-1", Status: ChapterCompleted, Order: 1},
		{ID: "chapter-2", Status: ChapterIncomplete, Order: 2},
	}
	if book.AllChaptersCompleted() {
		t.Fatalf("incomplete chapter should block completion")
	}
	book.Chapters[1].Status = ChapterCompleted
	if !book.AllChaptersCompleted() {
		t.Fatalf("all chapters completed should report true")
	}
}

func TestChapterLookup(t *testing.T) {
	book := Book{Chapters: []Chapter{{ID: "chapter-1", Order: 1}, {ID: "chapter-2", Order: 2}}}
	ch, ok := book.Chapter("chapter-2")
	if !ok || ch.Order != 2 {
		t.Fatalf("expected chapter-2 with order 2, got %+v ok=%v", ch, ok)
	}
	if _, ok := book.Chapter("chapter-9"); ok {
		t.Fatalf("missing chapter should not be found")
	}
}

func TestParseStatuses(t *testing.T) {
	if _, ok := ParseBookStatus("in-progress"); !ok {
		t.Fatalf("in-progress should parse")
	}
	if _, ok := ParseBookStatus("archived"); ok {
		t.Fatalf("unknown book status should not parse")
	}
	if _, ok := ParseChapterStatus("generating"); !ok {
		t.Fatalf("generating should parse")
	}
	if _, ok := ParseChapterStatus("done"); ok {
		t.Fatalf("unknown chapter status should not parse")
	}
}

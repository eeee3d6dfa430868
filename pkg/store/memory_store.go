package store

import (
	"sort"
	"sync"
	"time"

	"bookkreate/pkg/domain"
)

// MemoryStore keeps books and profiles in-process. Used by tests and local
// development.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[string]domain.Book
	profiles map[string]domain.UserProfile
	seq      int
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    make(map[string]domain.Book),
		profiles: make(map[string]domain.UserProfile),
	}
}

// CreateBook synthesizes the chapter skeleton and stores the new book.
func (m *MemoryStore) CreateBook(data BookData) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Distinct creation instants so newest-first ordering is deterministic
	// even when books are created within the clock resolution.
	m.seq++
	now := time.Now().UTC().Add(time.Duration(m.seq) * time.Microsecond)
	book := newBook(data, now)
	m.books[book.ID] = book
	return book, nil
}

// GetBook retrieves a book by id.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooksByOwner returns a user's books newest first.
func (m *MemoryStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := make([]domain.Book, 0)
	for _, b := range m.books {
		if b.UserID == ownerID {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	return books, nil
}

// CountBooksByOwner returns the number of books a user owns.
func (m *MemoryStore) CountBooksByOwner(ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, b := range m.books {
		if b.UserID == ownerID {
			count++
		}
	}
	return count, nil
}

// UpdateBook merges the patch into the stored book.
func (m *MemoryStore) UpdateBook(id string, patch BookPatch) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	book = applyBookPatch(book, patch, time.Now().UTC())
	m.books[id] = book
	return book, nil
}

// DeleteBook removes a book.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	return nil
}

// UpdateChapter merges the patch into one chapter and writes the whole
// chapter array back.
func (m *MemoryStore) UpdateChapter(bookID, chapterID string, patch ChapterPatch) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookID]
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	book, found := applyChapterPatch(book, chapterID, patch, time.Now().UTC())
	if !found {
		return domain.Book{}, ErrNotFound
	}
	m.books[bookID] = book
	return book, nil
}

// GetProfile returns a profile by uid.
func (m *MemoryStore) GetProfile(uid string) (domain.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[uid]
	return p, ok, nil
}

// SaveProfile creates or replaces a profile.
func (m *MemoryStore) SaveProfile(p domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UID] = p
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookkreate/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres. Books carry their
// chapter array as one JSONB column, so chapter updates are whole-document
// read-modify-writes with no cross-writer isolation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&BookModel{}, &UserProfileModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateBook synthesizes the chapter skeleton and persists the new book.
func (s *GormStore) CreateBook(data BookData) (domain.Book, error) {
	book := newBook(data, time.Now().UTC())
	model := bookToModel(book)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// GetBook retrieves a book by id.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooksByOwner returns a user's books newest first.
func (s *GormStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// CountBooksByOwner returns the number of books a user owns.
func (s *GormStore) CountBooksByOwner(ownerID string) (int, error) {
	var count int64
	if err := s.db.Model(&BookModel{}).Where("user_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpdateBook merges the patch into the stored book and bumps updated_at.
func (s *GormStore) UpdateBook(id string, patch BookPatch) (domain.Book, error) {
	book, ok, err := s.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	book = applyBookPatch(book, patch, time.Now().UTC())
	model := bookToModel(book)
	if err := s.db.Save(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// DeleteBook removes a book. Deleting a missing book is not an error.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// UpdateChapter loads the book, merges the patch into the one matching
// chapter and writes the whole chapter array back.
func (s *GormStore) UpdateChapter(bookID, chapterID string, patch ChapterPatch) (domain.Book, error) {
	book, ok, err := s.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	book, found := applyChapterPatch(book, chapterID, patch, time.Now().UTC())
	if !found {
		return domain.Book{}, ErrNotFound
	}
	model := bookToModel(book)
	if err := s.db.Save(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// GetProfile returns a user profile by uid.
func (s *GormStore) GetProfile(uid string) (domain.UserProfile, bool, error) {
	var model UserProfileModel
	if err := s.db.First(&model, "uid = ?", uid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UserProfile{}, false, nil
		}
		return domain.UserProfile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SaveProfile creates or updates a profile record.
func (s *GormStore) SaveProfile(p domain.UserProfile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "display_name", "subscription_tier",
			"books_created", "books_remaining", "next_reset_date", "updated_at",
		}),
	}).Create(&model).Error
}

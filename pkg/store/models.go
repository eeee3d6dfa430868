package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"bookkreate/pkg/domain"
)

// GORM models used for persistence. Chapters live inside the book row as a
// JSONB array, so every chapter mutation rewrites the whole array
// (last-write-wins at array granularity).
type BookModel struct {
	ID               string         `gorm:"primaryKey"`
	UserID           string         `gorm:"not null;index"`
	Title            string         `gorm:"not null"`
	Type             string         `gorm:"not null"`
	Category         string         `gorm:"not null"`
	ChapterCount     int            `gorm:"not null"`
	AuthorName       string         `gorm:"not null"`
	Acknowledgements string         `gorm:"type:text"`
	CoverDescription string         `gorm:"type:text"`
	BookDescription  string         `gorm:"type:text"`
	EndPageContent   string         `gorm:"type:text"`
	Chapters         datatypes.JSON `gorm:"type:jsonb"`
	Status           string         `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null;index"`
	UpdatedAt        time.Time      `gorm:"not null"`
}

type UserProfileModel struct {
	UID              string `gorm:"primaryKey"`
	Email            string `gorm:"not null"`
	DisplayName      string
	SubscriptionTier string `gorm:"not null"`
	BooksCreated     int    `gorm:"not null"`
	BooksRemaining   int    `gorm:"not null"`
	NextResetDate    string
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time
}

func bookToModel(b domain.Book) BookModel {
	chapters, _ := json.Marshal(b.Chapters)
	return BookModel{
		ID:               b.ID,
		UserID:           b.UserID,
		Title:            b.Title,
		Type:             b.Type,
		Category:         b.Category,
		ChapterCount:     b.ChapterCount,
		AuthorName:       b.AuthorName,
		Acknowledgements: b.Acknowledgements,
		CoverDescription: b.CoverDescription,
		BookDescription:  b.BookDescription,
		EndPageContent:   b.EndPageContent,
		Chapters:         chapters,
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	var chapters []domain.Chapter
	if len(m.Chapters) > 0 {
		_ = json.Unmarshal(m.Chapters, &chapters)
	}
	return domain.Book{
		ID:               m.ID,
		UserID:           m.UserID,
		Title:            m.Title,
		Type:             m.Type,
		Category:         m.Category,
		ChapterCount:     m.ChapterCount,
		AuthorName:       m.AuthorName,
		Acknowledgements: m.Acknowledgements,
		CoverDescription: m.CoverDescription,
		BookDescription:  m.BookDescription,
		EndPageContent:   m.EndPageContent,
		Chapters:         chapters,
		Status:           domain.BookStatus(m.Status),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func profileToModel(p domain.UserProfile) UserProfileModel {
	return UserProfileModel{
		UID:              p.UID,
		Email:            p.Email,
		DisplayName:      p.DisplayName,
		SubscriptionTier: string(p.SubscriptionTier),
		BooksCreated:     p.BooksCreated,
		BooksRemaining:   p.BooksRemaining,
		NextResetDate:    p.NextResetDate,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func profileFromModel(m UserProfileModel) domain.UserProfile {
	return domain.UserProfile{
		UID:              m.UID,
		Email:            m.Email,
		DisplayName:      m.DisplayName,
		SubscriptionTier: domain.ParseTier(m.SubscriptionTier),
		BooksCreated:     m.BooksCreated,
		BooksRemaining:   m.BooksRemaining,
		NextResetDate:    m.NextResetDate,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

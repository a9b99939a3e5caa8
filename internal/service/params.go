package service

import (
	"io"
	"strings"
	"time"

	"library_api/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SignUpInput is the registration payload. There is no role: new accounts are always "user".
type SignUpInput struct {
	Username string
	Email    string
	Password string
}

// BookFilter supports catalog search; empty strings disable a filter.
type BookFilter struct {
	Author  string
	Title   string
	Keyword string
	Skip    int
	Limit   int
}

// normalizeTerm trims and lower-cases a search term so it compares against the folded column.
func normalizeTerm(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

type NewBook struct {
	Title       string
	Author      string
	Description *string
	CoverURL    *string
}

// BookPatch is a sparse update: nil fields leave the book unchanged.
type BookPatch struct {
	Title       *string
	Author      *string
	Description *string
	CoverURL    *string
}

func (p BookPatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return newError(ErrInvalid, "title must not be empty")
	}
	if p.Author != nil && strings.TrimSpace(*p.Author) == "" {
		return newError(ErrInvalid, "author must not be empty")
	}
	return nil
}

// Apply merges the present fields of p into b.
func (p BookPatch) Apply(b *models.Book) {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.Description != nil {
		b.Description = p.Description
	}
	if p.CoverURL != nil {
		b.CoverURL = p.CoverURL
	}
}

// CoverUpload is an uploaded cover image as received from the client.
type CoverUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type NewReview struct {
	BookID  int
	Comment *string
	Rating  int
}

// ReviewPatch is a sparse update: nil fields leave the review unchanged.
type ReviewPatch struct {
	Comment *string
	Rating  *int
}

// Apply merges the present fields of p into r.
func (p ReviewPatch) Apply(r *models.Review) {
	if p.Comment != nil {
		r.Comment = p.Comment
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
}

// LogFilter supports activity history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "BORROWED", "RETURNED", ...
}

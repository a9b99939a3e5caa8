package models

import "time"

// Borrow is one lending of a book. It is active while ReturnDate is nil.
type Borrow struct {
	ID         int        `json:"id"`
	Ref        string     `json:"ref"` // ULID receipt reference
	BookID     int        `json:"book_id"`
	UserID     int        `json:"user_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
}

func (b *Borrow) Active() bool {
	return b.ReturnDate == nil
}

package service

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newBorrowRef returns a sortable, unique receipt reference for a borrow made at t.
func newBorrowRef(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

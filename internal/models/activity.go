package models

import "time"

// Activity types recorded in the library activity log.
const (
	ActivityUserRegistered = "USER_REGISTERED"
	ActivityRoleChanged    = "ROLE_CHANGED"
	ActivityBookCreated    = "BOOK_CREATED"
	ActivityBookUpdated    = "BOOK_UPDATED"
	ActivityBookDeleted    = "BOOK_DELETED"
	ActivityCoverUploaded  = "COVER_UPLOADED"
	ActivityBorrowed       = "BORROWED"
	ActivityReturned       = "RETURNED"
	ActivityReviewCreated  = "REVIEW_CREATED"
	ActivityReviewUpdated  = "REVIEW_UPDATED"
	ActivityReviewDeleted  = "REVIEW_DELETED"
)

// Activity is a single log entry.
type Activity struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	UserID      *int      `json:"user_id,omitempty"`
	BookID      *int      `json:"book_id,omitempty"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

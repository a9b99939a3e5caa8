package models

// Book is a catalog entry owned by the user who created it.
type Book struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"`
	OwnerID     *int    `json:"owner_id"` // nil once the owner is gone
}

// OwnedBy reports whether userID is the book's owner.
func (b *Book) OwnedBy(userID int) bool {
	return b.OwnerID != nil && *b.OwnerID == userID
}

package service

import "library_api/internal/models"

// RequireAdmin fails with ErrForbidden unless u is an admin.
func RequireAdmin(u *models.User) error {
	if !u.IsAdmin() {
		return errAdminRequired
	}
	return nil
}

// RequireOwnerOrAdmin succeeds when u owns the resource (ownerID) or is an admin.
// msg is the client-facing reason on failure.
func RequireOwnerOrAdmin(ownerID *int, u *models.User, msg string) error {
	if u == nil {
		return errNotAuthenticated
	}
	if u.IsAdmin() || (ownerID != nil && *ownerID == u.ID) {
		return nil
	}
	return newError(ErrForbidden, msg)
}

// requireBookOwner is the stricter rule used for book edits: admins get no bypass.
func requireBookOwner(b *models.Book, u *models.User, msg string) error {
	if u == nil {
		return errNotAuthenticated
	}
	if b.OwnedBy(u.ID) {
		return nil
	}
	return newError(ErrForbidden, msg)
}

package repositories

import (
	"errors"

	"warrantytracker/internal/models"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the requesting user. Ownership failures deliberately look identical to
// missing rows so record existence is never disclosed.
var ErrNotFound = errors.New("record not found")

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	Update(user *models.User) error
	// UsernameOrEmailTaken reports whether another user (id != excludeID)
	// already holds the given username or email.
	UsernameOrEmailTaken(username, email, excludeID string) (bool, error)
}

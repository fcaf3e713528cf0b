package repositories

import (
	"time"

	"warrantytracker/internal/models"
)

// Status filter values accepted by warranty listing queries.
const (
	FilterAll      = "all"
	FilterActive   = "active"
	FilterExpiring = "expiring"
	FilterExpired  = "expired"
)

// WarrantyFilter narrows a warranty listing. Today is passed in explicitly
// rather than read from the database clock so queries stay deterministic
// under test.
type WarrantyFilter struct {
	Search string
	Status string // one of FilterAll, FilterActive, FilterExpiring, FilterExpired
	Limit  int
	Offset int
	Today  time.Time
}

// WarrantyStats holds the per-user dashboard counters.
type WarrantyStats struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	ExpiringSoon int64 `json:"expiring_soon"`
	Expired      int64 `json:"expired"`
}

// WarrantyRepository defines the interface for warranty data access.
// Every read and write is scoped by the owning user's ID; a row owned by
// another user behaves exactly like a missing row.
type WarrantyRepository interface {
	Create(warranty *models.Warranty) error
	GetByID(id, userID string) (*models.Warranty, error)
	Update(warranty *models.Warranty) error
	Delete(id, userID string) error
	List(userID string, filter WarrantyFilter) ([]models.Warranty, error)
	Count(userID string, filter WarrantyFilter) (int64, error)
	Recent(userID string, limit int) ([]models.Warranty, error)
	ExpiringSoon(userID string, today time.Time) ([]models.Warranty, error)
	Stats(userID string, today time.Time) (WarrantyStats, error)
}

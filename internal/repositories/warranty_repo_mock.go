package repositories

import (
	"sort"
	"strings"
	"sync"
	"time"

	"warrantytracker/internal/expiry"
	"warrantytracker/internal/models"

	"github.com/google/uuid"
)

// MockWarrantyRepository is an in-memory implementation of
// WarrantyRepository, mirroring the GORM implementation's filter and
// ownership semantics for use in handler tests.
type MockWarrantyRepository struct {
	warranties map[string]models.Warranty
	mu         sync.RWMutex
}

// NewMockWarrantyRepository creates a new instance of MockWarrantyRepository.
func NewMockWarrantyRepository() *MockWarrantyRepository {
	return &MockWarrantyRepository{
		warranties: make(map[string]models.Warranty),
	}
}

// Create adds a new warranty.
func (r *MockWarrantyRepository) Create(warranty *models.Warranty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if warranty.ID == "" {
		warranty.ID = uuid.New().String()
	}
	if warranty.CreatedAt.IsZero() {
		warranty.CreatedAt = time.Now()
	}
	r.warranties[warranty.ID] = *warranty
	return nil
}

// GetByID returns a warranty owned by userID, or ErrNotFound.
func (r *MockWarrantyRepository) GetByID(id, userID string) (*models.Warranty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	warranty, ok := r.warranties[id]
	if !ok || warranty.UserID != userID {
		return nil, ErrNotFound
	}
	return &warranty, nil
}

// Update modifies an existing warranty.
func (r *MockWarrantyRepository) Update(warranty *models.Warranty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.warranties[warranty.ID]
	if !ok || existing.UserID != warranty.UserID {
		return ErrNotFound
	}
	r.warranties[warranty.ID] = *warranty
	return nil
}

// Delete removes a warranty owned by userID.
func (r *MockWarrantyRepository) Delete(id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	warranty, ok := r.warranties[id]
	if !ok || warranty.UserID != userID {
		return ErrNotFound
	}
	delete(r.warranties, id)
	return nil
}

// List returns the owner's warranties matching the filter, ordered by
// expiry date ascending.
func (r *MockWarrantyRepository) List(userID string, filter WarrantyFilter) ([]models.Warranty, error) {
	matches := r.matching(userID, filter)

	if filter.Limit > 0 {
		if filter.Offset >= len(matches) {
			return []models.Warranty{}, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[filter.Offset:end]
	}
	return matches, nil
}

// Count returns the number of warranties matching the filter.
func (r *MockWarrantyRepository) Count(userID string, filter WarrantyFilter) (int64, error) {
	return int64(len(r.matching(userID, filter))), nil
}

// Recent returns the most recently created warranties.
func (r *MockWarrantyRepository) Recent(userID string, limit int) ([]models.Warranty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Warranty
	for _, w := range r.warranties {
		if w.UserID == userID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ExpiringSoon returns warranties expiring within the next 30 days.
func (r *MockWarrantyRepository) ExpiringSoon(userID string, today time.Time) ([]models.Warranty, error) {
	return r.matching(userID, WarrantyFilter{Status: FilterExpiring, Today: today}), nil
}

// Stats returns the dashboard counters.
func (r *MockWarrantyRepository) Stats(userID string, today time.Time) (WarrantyStats, error) {
	return WarrantyStats{
		Total:        int64(len(r.matching(userID, WarrantyFilter{Status: FilterAll, Today: today}))),
		Active:       int64(len(r.matching(userID, WarrantyFilter{Status: FilterActive, Today: today}))),
		ExpiringSoon: int64(len(r.matching(userID, WarrantyFilter{Status: FilterExpiring, Today: today}))),
		Expired:      int64(len(r.matching(userID, WarrantyFilter{Status: FilterExpired, Today: today}))),
	}, nil
}

func (r *MockWarrantyRepository) matching(userID string, filter WarrantyFilter) []models.Warranty {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	soonCutoff := filter.Today.AddDate(0, 0, expiry.ExpiringSoonWindowDays)

	result := []models.Warranty{}
	for _, w := range r.warranties {
		if w.UserID != userID {
			continue
		}
		if search != "" && !containsAny(search, w.ProductName, w.Brand, w.Model, w.StoreVendor) {
			continue
		}
		switch filter.Status {
		case FilterActive:
			if !w.WarrantyExpiryDate.After(filter.Today) {
				continue
			}
		case FilterExpired:
			if w.WarrantyExpiryDate.After(filter.Today) {
				continue
			}
		case FilterExpiring:
			if !w.WarrantyExpiryDate.After(filter.Today) || w.WarrantyExpiryDate.After(soonCutoff) {
				continue
			}
		}
		result = append(result, w)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].WarrantyExpiryDate.Before(result[j].WarrantyExpiryDate)
	})
	return result
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"warrantytracker/internal/expiry"
	"warrantytracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMWarrantyRepository is a GORM implementation of WarrantyRepository.
type GORMWarrantyRepository struct {
	db *gorm.DB
}

// NewGORMWarrantyRepository creates a new instance of GORMWarrantyRepository.
func NewGORMWarrantyRepository(db *gorm.DB) *GORMWarrantyRepository {
	return &GORMWarrantyRepository{
		db: db,
	}
}

// Create creates a new warranty in the database.
func (r *GORMWarrantyRepository) Create(warranty *models.Warranty) error {
	if warranty.ID == "" {
		warranty.ID = uuid.New().String()
	}
	if err := r.db.Create(warranty).Error; err != nil {
		return fmt.Errorf("failed to create warranty: %w", err)
	}
	return nil
}

// GetByID retrieves a single warranty owned by userID. A warranty owned by
// someone else returns ErrNotFound, same as a missing row.
func (r *GORMWarrantyRepository) GetByID(id, userID string) (*models.Warranty, error) {
	var warranty models.Warranty
	if err := r.db.First(&warranty, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get warranty by ID %s: %w", id, err)
	}
	return &warranty, nil
}

// Update updates an existing warranty in the database.
func (r *GORMWarrantyRepository) Update(warranty *models.Warranty) error {
	// Save updates all fields, including zero values, so cleared optional
	// fields (brand, notes, receipt reference) persist as empty.
	res := r.db.Where("user_id = ?", warranty.UserID).Save(warranty)
	if res.Error != nil {
		return fmt.Errorf("failed to update warranty: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a warranty owned by userID.
func (r *GORMWarrantyRepository) Delete(id, userID string) error {
	res := r.db.Delete(&models.Warranty{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete warranty: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves the owner's warranties matching the filter, ordered by
// expiry date ascending. Limit and Offset are applied through GORM's bound
// clauses, never interpolated into the query text.
func (r *GORMWarrantyRepository) List(userID string, filter WarrantyFilter) ([]models.Warranty, error) {
	q := r.filtered(userID, filter).Order("warranty_expiry_date ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var warranties []models.Warranty
	if err := q.Find(&warranties).Error; err != nil {
		return nil, fmt.Errorf("failed to list warranties: %w", err)
	}
	return warranties, nil
}

// Count returns the number of warranties matching the filter, ignoring
// Limit and Offset.
func (r *GORMWarrantyRepository) Count(userID string, filter WarrantyFilter) (int64, error) {
	var count int64
	if err := r.filtered(userID, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count warranties: %w", err)
	}
	return count, nil
}

// Recent returns the most recently created warranties for the dashboard.
func (r *GORMWarrantyRepository) Recent(userID string, limit int) ([]models.Warranty, error) {
	var warranties []models.Warranty
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&warranties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent warranties: %w", err)
	}
	return warranties, nil
}

// ExpiringSoon returns all warranties expiring within the next 30 days,
// soonest first.
func (r *GORMWarrantyRepository) ExpiringSoon(userID string, today time.Time) ([]models.Warranty, error) {
	var warranties []models.Warranty
	err := r.db.Where("user_id = ? AND warranty_expiry_date > ? AND warranty_expiry_date <= ?",
		userID, today, today.AddDate(0, 0, expiry.ExpiringSoonWindowDays)).
		Order("warranty_expiry_date ASC").
		Find(&warranties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring warranties: %w", err)
	}
	return warranties, nil
}

// Stats returns the dashboard counters for one user.
func (r *GORMWarrantyRepository) Stats(userID string, today time.Time) (WarrantyStats, error) {
	var stats WarrantyStats
	base := func() *gorm.DB {
		return r.db.Model(&models.Warranty{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("failed to count warranties: %w", err)
	}
	if err := base().Where("warranty_expiry_date > ?", today).Count(&stats.Active).Error; err != nil {
		return stats, fmt.Errorf("failed to count active warranties: %w", err)
	}
	if err := base().Where("warranty_expiry_date <= ?", today).Count(&stats.Expired).Error; err != nil {
		return stats, fmt.Errorf("failed to count expired warranties: %w", err)
	}
	soonCutoff := today.AddDate(0, 0, expiry.ExpiringSoonWindowDays)
	if err := base().Where("warranty_expiry_date > ? AND warranty_expiry_date <= ?", today, soonCutoff).
		Count(&stats.ExpiringSoon).Error; err != nil {
		return stats, fmt.Errorf("failed to count expiring warranties: %w", err)
	}
	return stats, nil
}

// filtered builds the WHERE clause shared by List and Count.
func (r *GORMWarrantyRepository) filtered(userID string, filter WarrantyFilter) *gorm.DB {
	q := r.db.Model(&models.Warranty{}).Where("user_id = ?", userID)

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where(
			"(LOWER(product_name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ? OR LOWER(store_vendor) LIKE ?)",
			like, like, like, like,
		)
	}

	today := filter.Today
	switch filter.Status {
	case FilterActive:
		q = q.Where("warranty_expiry_date > ?", today)
	case FilterExpired:
		q = q.Where("warranty_expiry_date <= ?", today)
	case FilterExpiring:
		q = q.Where("warranty_expiry_date > ? AND warranty_expiry_date <= ?",
			today, today.AddDate(0, 0, expiry.ExpiringSoonWindowDays))
	}
	return q
}

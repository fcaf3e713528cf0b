package models

import (
	"time"

	"gorm.io/gorm"
)

// Warranty represents a single product warranty record owned by a user.
// WarrantyExpiryDate is stored redundantly for query efficiency but is
// always recomputed from PurchaseDate and WarrantyPeriodMonths on every
// create and update.
type Warranty struct {
	ID                   string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID               string         `json:"user_id" gorm:"index;type:varchar(36)"`
	ProductName          string         `json:"product_name" gorm:"type:varchar(200)" validate:"required,max=200"`
	Brand                string         `json:"brand" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Model                string         `json:"model" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	PurchaseDate         time.Time      `json:"purchase_date" gorm:"type:date"`
	WarrantyPeriodMonths int            `json:"warranty_period_months" validate:"required,gt=0"`
	WarrantyExpiryDate   time.Time      `json:"warranty_expiry_date" gorm:"type:date;index"`
	StoreVendor          string         `json:"store_vendor" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
	PurchasePrice        float64        `json:"purchase_price" validate:"gte=0"`
	ReceiptImage         string         `json:"receipt_image" gorm:"type:varchar(255)"`
	Notes                string         `json:"notes" gorm:"type:text" validate:"omitempty,max=2000"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"warrantytracker/internal/expiry"
	"warrantytracker/internal/models"
	"warrantytracker/internal/pagination"
	"warrantytracker/internal/repositories"
	"warrantytracker/internal/storage"

	"github.com/go-playground/validator/v10"
)

const purchaseDateLayout = "2006-01-02"

// EventPublisher publishes warranty lifecycle events for external
// consumers (reminder/notification services). Publishing is best-effort; a
// failed publish never fails the user-facing operation.
type EventPublisher interface {
	PublishWarrantyEvent(event string, payload map[string]interface{}) error
}

// WarrantyInput carries the add/edit form fields. Dates arrive as strings
// and are validated before any date arithmetic runs.
type WarrantyInput struct {
	ProductName          string  `json:"product_name" form:"product_name"`
	Brand                string  `json:"brand" form:"brand"`
	Model                string  `json:"model" form:"model"`
	PurchaseDate         string  `json:"purchase_date" form:"purchase_date"`
	WarrantyPeriodMonths int     `json:"warranty_period_months" form:"warranty_period_months"`
	StoreVendor          string  `json:"store_vendor" form:"store_vendor"`
	PurchasePrice        float64 `json:"purchase_price" form:"purchase_price"`
	Notes                string  `json:"notes" form:"notes"`
}

// WarrantyView is a warranty record decorated with its derived status and
// day count for rendering. DaysUntilExpiry is nil when no expiry date is
// known, which callers must distinguish from zero (expiring today).
type WarrantyView struct {
	models.Warranty
	Status          expiry.Status `json:"status"`
	DaysUntilExpiry *int          `json:"days_until_expiry"`
}

// WarrantyPage is one page of a filtered warranty listing.
type WarrantyPage struct {
	Warranties []WarrantyView        `json:"warranties"`
	Pagination pagination.Pagination `json:"pagination"`
	Filter     string                `json:"filter"`
	Search     string                `json:"search"`
}

// DashboardData aggregates the dashboard counters and highlight lists.
type DashboardData struct {
	Stats        repositories.WarrantyStats `json:"stats"`
	Recent       []WarrantyView             `json:"recent"`
	ExpiringSoon []WarrantyView             `json:"expiring_soon"`
}

// WarrantyService handles business logic for warranty records: validation,
// expiry derivation, receipt storage with rollback, and owner-scoped CRUD.
type WarrantyService struct {
	repo         repositories.WarrantyRepository
	store        storage.Store
	events       EventPublisher // may be nil
	validate     *validator.Validate
	itemsPerPage int

	// Clock supplies "today" for status derivation; overridable in tests.
	Clock func() time.Time
}

// NewWarrantyService creates a new WarrantyService. events may be nil when
// no broker is configured.
func NewWarrantyService(repo repositories.WarrantyRepository, store storage.Store, events EventPublisher, itemsPerPage int) *WarrantyService {
	if itemsPerPage <= 0 {
		itemsPerPage = 10
	}
	return &WarrantyService{
		repo:         repo,
		store:        store,
		events:       events,
		validate:     validator.New(),
		itemsPerPage: itemsPerPage,
		Clock:        time.Now,
	}
}

// Create validates the form, stores the optional receipt, computes the
// expiry date and inserts the record. If the insert fails after a receipt
// was stored, the stored file is rolled back so no orphan remains.
func (s *WarrantyService) Create(userID string, input WarrantyInput, receipt *storage.Upload) (*models.Warranty, error) {
	purchaseDate, verrs := s.validateWarrantyInput(input)
	if len(verrs) > 0 {
		return nil, verrs
	}

	receiptFilename, err := s.saveReceipt(receipt)
	if err != nil {
		return nil, err
	}

	warranty := &models.Warranty{
		UserID:               userID,
		ProductName:          input.ProductName,
		Brand:                input.Brand,
		Model:                input.Model,
		PurchaseDate:         purchaseDate,
		WarrantyPeriodMonths: input.WarrantyPeriodMonths,
		WarrantyExpiryDate:   expiry.ComputeExpiry(purchaseDate, input.WarrantyPeriodMonths),
		StoreVendor:          input.StoreVendor,
		PurchasePrice:        input.PurchasePrice,
		ReceiptImage:         receiptFilename,
		Notes:                input.Notes,
	}

	if err := s.repo.Create(warranty); err != nil {
		// Roll back the stored receipt so a failed insert leaves no
		// orphaned file behind.
		if receiptFilename != "" {
			if delErr := s.store.Delete(receiptFilename); delErr != nil {
				log.Printf("Failed to roll back receipt %s: %v", receiptFilename, delErr)
			}
		}
		return nil, fmt.Errorf("failed to create warranty: %w", err)
	}

	s.publish("warranty.created", warranty)
	return warranty, nil
}

// Get returns one of the user's warranties with derived status fields.
func (s *WarrantyService) Get(userID, id string) (*WarrantyView, error) {
	warranty, err := s.repo.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	view := s.view(*warranty)
	return &view, nil
}

// Update validates the form, recomputes the expiry date and saves the
// record. A replacement receipt is stored before the row update and rolled
// back if the update fails; the old file is only deleted once the update
// succeeded. removeReceipt deletes the existing file and clears the
// reference.
func (s *WarrantyService) Update(userID, id string, input WarrantyInput, receipt *storage.Upload, removeReceipt bool) (*models.Warranty, error) {
	existing, err := s.repo.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	purchaseDate, verrs := s.validateWarrantyInput(input)
	if len(verrs) > 0 {
		return nil, verrs
	}

	oldReceipt := existing.ReceiptImage
	newReceipt, err := s.saveReceipt(receipt)
	if err != nil {
		return nil, err
	}

	replaced := newReceipt != ""
	switch {
	case replaced:
		existing.ReceiptImage = newReceipt
	case removeReceipt:
		existing.ReceiptImage = ""
	}

	existing.ProductName = input.ProductName
	existing.Brand = input.Brand
	existing.Model = input.Model
	existing.PurchaseDate = purchaseDate
	existing.WarrantyPeriodMonths = input.WarrantyPeriodMonths
	existing.WarrantyExpiryDate = expiry.ComputeExpiry(purchaseDate, input.WarrantyPeriodMonths)
	existing.StoreVendor = input.StoreVendor
	existing.PurchasePrice = input.PurchasePrice
	existing.Notes = input.Notes

	if err := s.repo.Update(existing); err != nil {
		if replaced {
			if delErr := s.store.Delete(newReceipt); delErr != nil {
				log.Printf("Failed to roll back receipt %s: %v", newReceipt, delErr)
			}
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update warranty: %w", err)
	}

	// The row now points at the new state; clean up the superseded file.
	if oldReceipt != "" && (replaced || removeReceipt) {
		if delErr := s.store.Delete(oldReceipt); delErr != nil {
			log.Printf("Failed to delete replaced receipt %s: %v", oldReceipt, delErr)
		}
	}

	s.publish("warranty.updated", existing)
	return existing, nil
}

// Delete removes the record and best-effort deletes its receipt file.
// Deleting a warranty without a receipt is a no-op on storage and still
// succeeds.
func (s *WarrantyService) Delete(userID, id string) error {
	warranty, err := s.repo.GetByID(id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(id, userID); err != nil {
		return err
	}

	if warranty.ReceiptImage != "" {
		if delErr := s.store.Delete(warranty.ReceiptImage); delErr != nil {
			log.Printf("Failed to delete receipt %s: %v", warranty.ReceiptImage, delErr)
		}
	}

	s.publish("warranty.deleted", warranty)
	return nil
}

// List returns one page of the user's warranties matching the search text
// and status filter, ordered by expiry date ascending. The requested page
// is clamped into the valid range before the offset is computed.
func (s *WarrantyService) List(userID, search, statusFilter string, requestedPage int) (*WarrantyPage, error) {
	switch statusFilter {
	case repositories.FilterActive, repositories.FilterExpiring, repositories.FilterExpired:
	default:
		statusFilter = repositories.FilterAll
	}

	filter := repositories.WarrantyFilter{
		Search: search,
		Status: statusFilter,
		Today:  s.today(),
	}

	total, err := s.repo.Count(userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count warranties: %w", err)
	}

	page := pagination.Paginate(int(total), s.itemsPerPage, requestedPage)
	filter.Limit = page.ItemsPerPage
	filter.Offset = page.Offset

	warranties, err := s.repo.List(userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list warranties: %w", err)
	}

	return &WarrantyPage{
		Warranties: s.views(warranties),
		Pagination: page,
		Filter:     statusFilter,
		Search:     search,
	}, nil
}

// Dashboard returns the per-user counters, the five most recently added
// warranties, and everything expiring within the next 30 days.
func (s *WarrantyService) Dashboard(userID string) (*DashboardData, error) {
	today := s.today()

	stats, err := s.repo.Stats(userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load warranty stats: %w", err)
	}
	recent, err := s.repo.Recent(userID, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent warranties: %w", err)
	}
	expiring, err := s.repo.ExpiringSoon(userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load expiring warranties: %w", err)
	}

	return &DashboardData{
		Stats:        stats,
		Recent:       s.views(recent),
		ExpiringSoon: s.views(expiring),
	}, nil
}

func (s *WarrantyService) saveReceipt(receipt *storage.Upload) (string, error) {
	if receipt == nil {
		return "", nil
	}
	filename, err := s.store.Save(*receipt)
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		return "", ValidationErrors{"Receipt file is too large (max 5 MB)."}
	case errors.Is(err, storage.ErrUnsupportedType):
		return "", ValidationErrors{"Receipt file type is not allowed. Use JPEG, PNG, GIF, or PDF."}
	case err != nil:
		return "", fmt.Errorf("failed to store receipt: %w", err)
	}
	return filename, nil
}

func (s *WarrantyService) publish(event string, warranty *models.Warranty) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"warranty_id":  warranty.ID,
		"user_id":      warranty.UserID,
		"product_name": warranty.ProductName,
		"expiry_date":  warranty.WarrantyExpiryDate.Format(purchaseDateLayout),
	}
	if err := s.events.PublishWarrantyEvent(event, payload); err != nil {
		log.Printf("Warning: failed to publish %s event for warranty %s: %v", event, warranty.ID, err)
	}
}

func (s *WarrantyService) today() time.Time {
	year, month, day := s.Clock().UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (s *WarrantyService) view(w models.Warranty) WarrantyView {
	today := s.today()
	view := WarrantyView{
		Warranty: w,
		Status:   expiry.Classify(&w.WarrantyExpiryDate, today),
	}
	if view.Status != expiry.StatusUnknown {
		days := expiry.DaysUntil(w.WarrantyExpiryDate, today)
		view.DaysUntilExpiry = &days
	}
	return view
}

func (s *WarrantyService) views(warranties []models.Warranty) []WarrantyView {
	views := make([]WarrantyView, 0, len(warranties))
	for _, w := range warranties {
		views = append(views, s.view(w))
	}
	return views
}

// validateWarrantyInput parses the purchase date and runs the model's
// validate tags against a candidate record, translating field failures
// into the user-facing messages.
func (s *WarrantyService) validateWarrantyInput(input WarrantyInput) (time.Time, ValidationErrors) {
	var verrs ValidationErrors
	var purchaseDate time.Time

	if input.PurchaseDate == "" {
		verrs = append(verrs, "Purchase date is required.")
	} else {
		parsed, err := time.Parse(purchaseDateLayout, input.PurchaseDate)
		if err != nil {
			verrs = append(verrs, "Invalid purchase date format.")
		} else {
			purchaseDate = parsed
		}
	}

	candidate := models.Warranty{
		ProductName:          input.ProductName,
		Brand:                input.Brand,
		Model:                input.Model,
		WarrantyPeriodMonths: input.WarrantyPeriodMonths,
		StoreVendor:          input.StoreVendor,
		PurchasePrice:        input.PurchasePrice,
		Notes:                input.Notes,
	}
	if err := s.validate.Struct(&candidate); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verrs = append(verrs, warrantyFieldMessage(fe))
			}
		} else {
			verrs = append(verrs, "Invalid warranty details.")
		}
	}

	return purchaseDate, verrs
}

func warrantyFieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "ProductName":
		if fe.Tag() == "max" {
			return "Product name must be 200 characters or fewer."
		}
		return "Product name is required."
	case "Brand":
		return "Brand must be 100 characters or fewer."
	case "Model":
		return "Model must be 100 characters or fewer."
	case "WarrantyPeriodMonths":
		return "Warranty period must be greater than 0 months."
	case "StoreVendor":
		return "Store/vendor must be 200 characters or fewer."
	case "PurchasePrice":
		return "Purchase price cannot be negative."
	case "Notes":
		return "Notes must be 2000 characters or fewer."
	default:
		return "Invalid value for " + fe.Field() + "."
	}
}

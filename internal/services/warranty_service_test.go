package services_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"warrantytracker/internal/expiry"
	"warrantytracker/internal/models"
	"warrantytracker/internal/repositories"
	"warrantytracker/internal/services"
	"warrantytracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockWarrantyRepo is a mock implementation of repositories.WarrantyRepository
type MockWarrantyRepo struct {
	mock.Mock
}

func (m *MockWarrantyRepo) Create(w *models.Warranty) error {
	args := m.Called(w)
	return args.Error(0)
}

func (m *MockWarrantyRepo) GetByID(id, userID string) (*models.Warranty, error) {
	args := m.Called(id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Warranty), args.Error(1)
}

func (m *MockWarrantyRepo) Update(w *models.Warranty) error {
	args := m.Called(w)
	return args.Error(0)
}

func (m *MockWarrantyRepo) Delete(id, userID string) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockWarrantyRepo) List(userID string, filter repositories.WarrantyFilter) ([]models.Warranty, error) {
	args := m.Called(userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Warranty), args.Error(1)
}

func (m *MockWarrantyRepo) Count(userID string, filter repositories.WarrantyFilter) (int64, error) {
	args := m.Called(userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWarrantyRepo) Recent(userID string, limit int) ([]models.Warranty, error) {
	args := m.Called(userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Warranty), args.Error(1)
}

func (m *MockWarrantyRepo) ExpiringSoon(userID string, today time.Time) ([]models.Warranty, error) {
	args := m.Called(userID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Warranty), args.Error(1)
}

func (m *MockWarrantyRepo) Stats(userID string, today time.Time) (repositories.WarrantyStats, error) {
	args := m.Called(userID, today)
	return args.Get(0).(repositories.WarrantyStats), args.Error(1)
}

// MockStore is a mock implementation of storage.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(upload storage.Upload) (string, error) {
	args := m.Called(upload)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Delete(filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishWarrantyEvent(event string, payload map[string]interface{}) error {
	args := m.Called(event, payload)
	return args.Error(0)
}

func fixedClock(y int, mo time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, mo, d, 12, 0, 0, 0, time.UTC) }
}

func validInput() services.WarrantyInput {
	return services.WarrantyInput{
		ProductName:          "XPS 13",
		Brand:                "Dell",
		PurchaseDate:         "2024-01-31",
		WarrantyPeriodMonths: 1,
		PurchasePrice:        999.99,
	}
}

func TestWarrantyService_Create_ComputesExpiry(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)
	service.Clock = fixedClock(2024, time.June, 1)

	mockRepo.On("Create", mock.AnythingOfType("*models.Warranty")).Return(nil).Once()

	w, err := service.Create("user-1", validInput(), nil)
	assert.NoError(t, err)
	// Jan 31 + 1 month clamps to the leap-year Feb 29.
	assert.Equal(t, "2024-02-29", w.WarrantyExpiryDate.Format("2006-01-02"))
	assert.Equal(t, "user-1", w.UserID)
	mockRepo.AssertExpectations(t)
}

func TestWarrantyService_Create_ValidationFailureAppliesNothing(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	_, err := service.Create("user-1", services.WarrantyInput{
		PurchaseDate:         "31/01/2024",
		WarrantyPeriodMonths: 0,
		PurchasePrice:        -5,
	}, nil)

	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Product name is required.")
	assert.Contains(t, verrs, "Invalid purchase date format.")
	assert.Contains(t, verrs, "Warranty period must be greater than 0 months.")
	assert.Contains(t, verrs, "Purchase price cannot be negative.")

	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
	mockStore.AssertNotCalled(t, "Save", mock.Anything)
}

func TestWarrantyService_Create_EnforcesFieldLengthLimits(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	input := validInput()
	input.ProductName = strings.Repeat("x", 201)
	input.Brand = strings.Repeat("b", 101)
	input.Notes = strings.Repeat("n", 2001)

	_, err := service.Create("user-1", input, nil)

	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Product name must be 200 characters or fewer.")
	assert.Contains(t, verrs, "Brand must be 100 characters or fewer.")
	assert.Contains(t, verrs, "Notes must be 2000 characters or fewer.")

	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestWarrantyService_Create_WithReceipt(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	mockEvents := new(MockPublisher)
	service := services.NewWarrantyService(mockRepo, mockStore, mockEvents, 10)
	service.Clock = fixedClock(2024, time.June, 1)

	receipt := &storage.Upload{DeclaredType: "image/png", Size: 100}
	mockStore.On("Save", mock.AnythingOfType("storage.Upload")).Return("stored-receipt.png", nil).Once()
	mockRepo.On("Create", mock.MatchedBy(func(w *models.Warranty) bool {
		return w.ReceiptImage == "stored-receipt.png"
	})).Return(nil).Once()
	mockEvents.On("PublishWarrantyEvent", "warranty.created", mock.Anything).Return(nil).Once()

	_, err := service.Create("user-1", validInput(), receipt)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockStore.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestWarrantyService_Create_RejectedReceiptBlocksSubmission(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	mockStore.On("Save", mock.AnythingOfType("storage.Upload")).Return("", storage.ErrUnsupportedType).Once()

	_, err := service.Create("user-1", validInput(), &storage.Upload{DeclaredType: "text/plain"})
	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Receipt file type is not allowed. Use JPEG, PNG, GIF, or PDF.")

	// The record is never written without a valid receipt.
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestWarrantyService_Create_RollsBackReceiptOnInsertFailure(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	mockStore.On("Save", mock.AnythingOfType("storage.Upload")).Return("orphan.png", nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Warranty")).Return(fmt.Errorf("database error")).Once()
	mockStore.On("Delete", "orphan.png").Return(nil).Once()

	_, err := service.Create("user-1", validInput(), &storage.Upload{DeclaredType: "image/png"})
	assert.Error(t, err)
	_, isValidation := services.AsValidationErrors(err)
	assert.False(t, isValidation)

	mockStore.AssertExpectations(t)
}

func TestWarrantyService_Update_RecomputesExpiryAndReplacesReceipt(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)
	service.Clock = fixedClock(2024, time.June, 1)

	existing := &models.Warranty{
		ID:           "w-1",
		UserID:       "user-1",
		ProductName:  "XPS 13",
		ReceiptImage: "old.png",
	}

	input := validInput()
	input.WarrantyPeriodMonths = 12

	mockRepo.On("GetByID", "w-1", "user-1").Return(existing, nil).Once()
	mockStore.On("Save", mock.AnythingOfType("storage.Upload")).Return("new.png", nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(w *models.Warranty) bool {
		return w.ReceiptImage == "new.png" &&
			w.WarrantyExpiryDate.Format("2006-01-02") == "2025-01-31"
	})).Return(nil).Once()
	mockStore.On("Delete", "old.png").Return(nil).Once()

	w, err := service.Update("user-1", "w-1", input, &storage.Upload{DeclaredType: "image/png"}, false)
	assert.NoError(t, err)
	assert.Equal(t, "new.png", w.ReceiptImage)
	mockRepo.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestWarrantyService_Update_RollsBackNewReceiptOnFailure(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	existing := &models.Warranty{ID: "w-1", UserID: "user-1", ReceiptImage: "old.png"}

	mockRepo.On("GetByID", "w-1", "user-1").Return(existing, nil).Once()
	mockStore.On("Save", mock.AnythingOfType("storage.Upload")).Return("new.png", nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.Warranty")).Return(fmt.Errorf("database error")).Once()
	mockStore.On("Delete", "new.png").Return(nil).Once()

	_, err := service.Update("user-1", "w-1", validInput(), &storage.Upload{DeclaredType: "image/png"}, false)
	assert.Error(t, err)

	// The replaced file stays put; only the new upload is rolled back.
	mockStore.AssertNotCalled(t, "Delete", "old.png")
	mockStore.AssertExpectations(t)
}

func TestWarrantyService_Update_RemoveReceipt(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	existing := &models.Warranty{ID: "w-1", UserID: "user-1", ReceiptImage: "old.png"}

	mockRepo.On("GetByID", "w-1", "user-1").Return(existing, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(w *models.Warranty) bool {
		return w.ReceiptImage == ""
	})).Return(nil).Once()
	mockStore.On("Delete", "old.png").Return(nil).Once()

	w, err := service.Update("user-1", "w-1", validInput(), nil, true)
	assert.NoError(t, err)
	assert.Empty(t, w.ReceiptImage)
	mockStore.AssertExpectations(t)
}

func TestWarrantyService_Delete(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	// Deleting a warranty with a receipt removes both record and file.
	withReceipt := &models.Warranty{ID: "w-1", UserID: "user-1", ReceiptImage: "r.png"}
	mockRepo.On("GetByID", "w-1", "user-1").Return(withReceipt, nil).Once()
	mockRepo.On("Delete", "w-1", "user-1").Return(nil).Once()
	mockStore.On("Delete", "r.png").Return(nil).Once()

	assert.NoError(t, service.Delete("user-1", "w-1"))
	mockRepo.AssertExpectations(t)
	mockStore.AssertExpectations(t)

	// Deleting one without a receipt touches no storage and still succeeds.
	noReceipt := &models.Warranty{ID: "w-2", UserID: "user-1"}
	mockRepo.On("GetByID", "w-2", "user-1").Return(noReceipt, nil).Once()
	mockRepo.On("Delete", "w-2", "user-1").Return(nil).Once()

	assert.NoError(t, service.Delete("user-1", "w-2"))
	mockStore.AssertNumberOfCalls(t, "Delete", 1)
}

func TestWarrantyService_OwnershipLooksLikeNotFound(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)

	mockRepo.On("GetByID", "w-1", "intruder").Return(nil, repositories.ErrNotFound).Times(3)

	_, err := service.Get("intruder", "w-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = service.Update("intruder", "w-1", validInput(), nil, false)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	err = service.Delete("intruder", "w-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestWarrantyService_List_ClampsPageAndDerivesStatus(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)
	service.Clock = fixedClock(2024, time.June, 1)

	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	records := []models.Warranty{
		{ID: "w-1", UserID: "user-1", ProductName: "a", WarrantyExpiryDate: today.AddDate(0, 0, -3)},
		{ID: "w-2", UserID: "user-1", ProductName: "b", WarrantyExpiryDate: today.AddDate(0, 0, 10)},
		{ID: "w-3", UserID: "user-1", ProductName: "c", WarrantyExpiryDate: today.AddDate(0, 0, 90)},
	}

	countFilter := repositories.WarrantyFilter{Search: "dell", Status: "all", Today: today}
	listFilter := countFilter
	listFilter.Limit = 10
	listFilter.Offset = 20

	// 25 matches, page 99 requested: clamps to page 3, offset 20.
	mockRepo.On("Count", "user-1", countFilter).Return(int64(25), nil).Once()
	mockRepo.On("List", "user-1", listFilter).Return(records, nil).Once()

	page, err := service.List("user-1", "dell", "everything", 99)
	assert.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.CurrentPage)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, "all", page.Filter, "unrecognized filters fall back to all")

	assert.Equal(t, expiry.StatusExpired, page.Warranties[0].Status)
	assert.Equal(t, expiry.StatusExpiringSoon, page.Warranties[1].Status)
	assert.Equal(t, expiry.StatusActive, page.Warranties[2].Status)

	// Days-until round-trips with the status classification.
	assert.Equal(t, -3, *page.Warranties[0].DaysUntilExpiry)
	assert.Equal(t, 10, *page.Warranties[1].DaysUntilExpiry)
	assert.Equal(t, 90, *page.Warranties[2].DaysUntilExpiry)
	mockRepo.AssertExpectations(t)
}

func TestWarrantyService_Dashboard(t *testing.T) {
	mockRepo := new(MockWarrantyRepo)
	mockStore := new(MockStore)
	service := services.NewWarrantyService(mockRepo, mockStore, nil, 10)
	service.Clock = fixedClock(2024, time.June, 1)

	today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	stats := repositories.WarrantyStats{Total: 4, Active: 2, ExpiringSoon: 1, Expired: 2}
	soon := []models.Warranty{{ID: "w-2", UserID: "user-1", WarrantyExpiryDate: today.AddDate(0, 0, 7)}}

	mockRepo.On("Stats", "user-1", today).Return(stats, nil).Once()
	mockRepo.On("Recent", "user-1", 5).Return([]models.Warranty{}, nil).Once()
	mockRepo.On("ExpiringSoon", "user-1", today).Return(soon, nil).Once()

	data, err := service.Dashboard("user-1")
	assert.NoError(t, err)
	assert.Equal(t, stats, data.Stats)
	assert.Len(t, data.ExpiringSoon, 1)
	assert.Equal(t, expiry.StatusExpiringSoon, data.ExpiringSoon[0].Status)
	mockRepo.AssertExpectations(t)
}

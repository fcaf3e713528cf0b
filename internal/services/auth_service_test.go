package services_test

import (
	"testing"

	"warrantytracker/internal/models"
	"warrantytracker/internal/repositories"
	"warrantytracker/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UsernameOrEmailTaken(username, email, excludeID string) (bool, error) {
	args := m.Called(username, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func TestAuthService_Register(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo)

	input := services.RegisterInput{
		Username:        "testuser",
		Email:           "test@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
	}

	// Successful registration stores a bcrypt hash, never the plain password.
	mockRepo.On("UsernameOrEmailTaken", "testuser", "test@example.com", "").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := authService.Register(input)
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Duplicate username or email is rejected with one merged message.
	mockRepo.On("UsernameOrEmailTaken", "testuser", "test@example.com", "").Return(true, nil).Once()
	_, err = authService.Register(input)
	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Username or email already exists.")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Register_ValidationMessages(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo)

	_, err := authService.Register(services.RegisterInput{
		Username:        "ab",
		Email:           "not-an-email",
		Password:        "12345",
		ConfirmPassword: "different",
	})

	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Username must be at least 3 characters long.")
	assert.Contains(t, verrs, "Please enter a valid email address.")
	assert.Contains(t, verrs, "Password must be at least 6 characters long.")
	assert.Contains(t, verrs, "Passwords do not match.")

	// No repository call is made for an invalid submission.
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)

	_, err = authService.Register(services.RegisterInput{
		Username:        "bad name!",
		Email:           "ok@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
	})
	verrs, _ = services.AsValidationErrors(err)
	assert.Contains(t, verrs, "Username can only contain letters, numbers, and underscores.")
}

func TestAuthService_Login(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Email:    "test@example.com",
		Password: string(hashedPassword),
	}

	// Login by username.
	mockRepo.On("GetByUsername", "testuser").Return(user, nil).Once()
	got, err := authService.Login("testuser", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "user-123", got.ID)
	mockRepo.AssertExpectations(t)

	// Login by email falls back when the username lookup misses.
	mockRepo.On("GetByUsername", "test@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "test@example.com").Return(user, nil).Once()
	got, err = authService.Login("test@example.com", "password123")
	assert.NoError(t, err)
	assert.Equal(t, "user-123", got.ID)
	mockRepo.AssertExpectations(t)

	// Wrong password and unknown account produce the same error.
	mockRepo.On("GetByUsername", "testuser").Return(user, nil).Once()
	_, err = authService.Login("testuser", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	mockRepo.On("GetByUsername", "nobody").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "nobody").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Login("nobody", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo)

	existing := &models.User{ID: "user-123", Username: "olduser", Email: "old@example.com"}

	mockRepo.On("UsernameOrEmailTaken", "newuser", "new@example.com", "user-123").Return(false, nil).Once()
	mockRepo.On("GetByID", "user-123").Return(existing, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := authService.UpdateProfile("user-123", services.ProfileInput{
		Username: "newuser",
		Email:    "new@example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "newuser", user.Username)
	assert.Equal(t, "new@example.com", user.Email)
	mockRepo.AssertExpectations(t)

	// Username or email already held by someone else.
	mockRepo.On("UsernameOrEmailTaken", "newuser", "new@example.com", "user-123").Return(true, nil).Once()
	_, err = authService.UpdateProfile("user-123", services.ProfileInput{
		Username: "newuser",
		Email:    "new@example.com",
	})
	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Username or email already exists.")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ChangePassword(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.DefaultCost)
	user := &models.User{ID: "user-123", Username: "testuser", Password: string(hashedPassword)}

	// Wrong current password.
	mockRepo.On("GetByID", "user-123").Return(user, nil).Once()
	err := authService.ChangePassword("user-123", services.PasswordChangeInput{
		CurrentPassword: "nope",
		NewPassword:     "newpassword",
		ConfirmPassword: "newpassword",
	})
	verrs, ok := services.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Contains(t, verrs, "Current password is incorrect.")

	// Mismatched confirmation.
	mockRepo.On("GetByID", "user-123").Return(user, nil).Once()
	err = authService.ChangePassword("user-123", services.PasswordChangeInput{
		CurrentPassword: "oldpassword",
		NewPassword:     "newpassword",
		ConfirmPassword: "other",
	})
	verrs, _ = services.AsValidationErrors(err)
	assert.Contains(t, verrs, "New passwords do not match.")

	// Success re-hashes the credential.
	mockRepo.On("GetByID", "user-123").Return(user, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("newpassword")) == nil
	})).Return(nil).Once()
	err = authService.ChangePassword("user-123", services.PasswordChangeInput{
		CurrentPassword: "oldpassword",
		NewPassword:     "newpassword",
		ConfirmPassword: "newpassword",
	})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

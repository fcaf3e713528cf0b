package services

import (
	"errors"
	"fmt"
	"regexp"

	"warrantytracker/internal/models"
	"warrantytracker/internal/repositories"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// ProfileInput carries the profile update form fields.
type ProfileInput struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
}

// PasswordChangeInput carries the change-password form fields.
type PasswordChangeInput struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// AuthService handles registration, login and profile management for the
// session-based authentication flow.
type AuthService struct {
	userRepo repositories.UserRepository
	validate *validator.Validate
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		validate: validator.New(),
	}
}

// Register validates the registration form, hashes the password and stores
// the new user. Failures come back as ValidationErrors; nothing is applied
// when any field is rejected.
func (s *AuthService) Register(input RegisterInput) (*models.User, error) {
	verrs := s.validateAccountFields(input.Username, input.Email)

	if input.Password == "" {
		verrs = append(verrs, "Password is required.")
	} else if len(input.Password) < 6 {
		verrs = append(verrs, "Password must be at least 6 characters long.")
	}
	if input.Password != input.ConfirmPassword {
		verrs = append(verrs, "Passwords do not match.")
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	taken, err := s.userRepo.UsernameOrEmailTaken(input.Username, input.Email, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if taken {
		return nil, ValidationErrors{"Username or email already exists."}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Login authenticates by username or email plus password. Any failure
// returns ErrInvalidCredentials without revealing whether the account
// exists.
func (s *AuthService) Login(identifier, password string) (*models.User, error) {
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(identifier)
	if errors.Is(err, repositories.ErrNotFound) {
		user, err = s.userRepo.GetByEmail(identifier)
	}
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns the user with the given ID.
func (s *AuthService) GetUser(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}

// UpdateProfile changes the user's username and email after validating the
// fields and checking uniqueness against everyone else.
func (s *AuthService) UpdateProfile(userID string, input ProfileInput) (*models.User, error) {
	if verrs := s.validateAccountFields(input.Username, input.Email); len(verrs) > 0 {
		return nil, verrs
	}

	taken, err := s.userRepo.UsernameOrEmailTaken(input.Username, input.Email, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if taken {
		return nil, ValidationErrors{"Username or email already exists."}
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Username = input.Username
	user.Email = input.Email
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// ChangePassword verifies the current password and replaces it with the
// new one.
func (s *AuthService) ChangePassword(userID string, input PasswordChangeInput) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	var verrs ValidationErrors
	if input.CurrentPassword == "" {
		verrs = append(verrs, "Current password is required.")
	} else if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.CurrentPassword)) != nil {
		verrs = append(verrs, "Current password is incorrect.")
	}

	if input.NewPassword == "" {
		verrs = append(verrs, "New password is required.")
	} else if len(input.NewPassword) < 6 {
		verrs = append(verrs, "New password must be at least 6 characters long.")
	}
	if input.NewPassword != input.ConfirmPassword {
		verrs = append(verrs, "New passwords do not match.")
	}
	if len(verrs) > 0 {
		return verrs
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

func (s *AuthService) validateAccountFields(username, email string) ValidationErrors {
	var verrs ValidationErrors

	switch {
	case username == "":
		verrs = append(verrs, "Username is required.")
	case len(username) < 3:
		verrs = append(verrs, "Username must be at least 3 characters long.")
	case !usernamePattern.MatchString(username):
		verrs = append(verrs, "Username can only contain letters, numbers, and underscores.")
	}

	if email == "" {
		verrs = append(verrs, "Email is required.")
	} else if s.validate.Var(email, "email") != nil {
		verrs = append(verrs, "Please enter a valid email address.")
	}
	return verrs
}

package handlers

import (
	"errors"
	"log"

	"warrantytracker/internal/flash"
	"warrantytracker/internal/middleware"
	"warrantytracker/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler handles registration, login, logout and profile pages.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *session.Store
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, sessions *session.Store) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/register", h.HandleRegister)
	router.Post("/login", h.HandleLogin)
	router.Post("/logout", h.HandleLogout)
}

// RegisterProtectedRoutes registers the profile routes, which require an
// authenticated session.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/profile", h.HandleProfile)
	router.Put("/profile", h.HandleUpdateProfile)
	router.Post("/profile/password", h.HandleChangePassword)
}

// HandleRegister handles new account registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if _, err := h.authService.Register(input); err != nil {
		if verrs, ok := services.AsValidationErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verrs,
			})
		}
		log.Printf("Error registering user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Registration failed. Please try again.",
		})
	}

	sess, err := h.sessions.Get(c)
	if err == nil {
		if err := flash.Add(sess, flash.TypeSuccess, "Registration successful! Please log in."); err != nil {
			log.Printf("Failed to save flash message: %v", err)
		}
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// LoginRequest represents the login form. The username field also accepts
// an email address.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// HandleLogin authenticates the user and establishes a session.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	user, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid username/email or password.",
			})
		}
		log.Printf("Error during login for %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Login failed. Please try again.",
		})
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		log.Printf("Failed to load session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Login failed. Please try again.",
		})
	}
	// Fresh session ID on privilege change. Save releases the session, so
	// the welcome flash goes in before the single Save inside flash.Add.
	if err := sess.Regenerate(); err != nil {
		log.Printf("Failed to regenerate session: %v", err)
	}
	sess.Set(middleware.SessionUserIDKey, user.ID)
	if err := flash.Add(sess, flash.TypeSuccess, "Welcome back, "+user.Username+"!"); err != nil {
		log.Printf("Failed to save session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Login failed. Please try again.",
		})
	}
	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}

// HandleLogout destroys the session.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Printf("Failed to destroy session: %v", err)
		}
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// HandleProfile returns the current user's profile page data.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	user, err := h.authService.GetUser(middleware.UserID(c))
	if err != nil {
		log.Printf("Error loading profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load profile. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"user":    user,
		"flashes": h.popFlashes(c),
	})
}

// HandleUpdateProfile changes the user's username and email.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var input services.ProfileInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing profile request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if _, err := h.authService.UpdateProfile(middleware.UserID(c), input); err != nil {
		if verrs, ok := services.AsValidationErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verrs,
			})
		}
		log.Printf("Error updating profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Profile update failed. Please try again.",
		})
	}

	h.addFlash(c, flash.TypeSuccess, "Profile updated successfully!")
	return c.Redirect("/profile", fiber.StatusSeeOther)
}

// HandleChangePassword verifies the current password and sets a new one.
func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	var input services.PasswordChangeInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing password request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if err := h.authService.ChangePassword(middleware.UserID(c), input); err != nil {
		if verrs, ok := services.AsValidationErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verrs,
			})
		}
		log.Printf("Error changing password: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Password update failed. Please try again.",
		})
	}

	h.addFlash(c, flash.TypeSuccess, "Password changed successfully!")
	return c.Redirect("/profile", fiber.StatusSeeOther)
}

func (h *AuthHandler) addFlash(c *fiber.Ctx, msgType, text string) {
	sess, err := h.sessions.Get(c)
	if err != nil {
		log.Printf("Failed to load session for flash: %v", err)
		return
	}
	if err := flash.Add(sess, msgType, text); err != nil {
		log.Printf("Failed to save flash message: %v", err)
	}
}

func (h *AuthHandler) popFlashes(c *fiber.Ctx) []flash.Message {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return []flash.Message{}
	}
	msgs, err := flash.Pop(sess)
	if err != nil {
		log.Printf("Failed to read flash messages: %v", err)
		return []flash.Message{}
	}
	return msgs
}

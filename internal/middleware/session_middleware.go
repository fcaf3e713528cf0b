package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys and context locals shared by the auth middleware and the
// handlers.
const (
	SessionUserIDKey = "user_id"
	LocalsUserIDKey  = "user_id"
)

// AuthRequired is a Fiber middleware that redirects unauthenticated
// requests to the login page. On success it stores the authenticated
// user's ID in the request locals for subsequent handlers.
func AuthRequired(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			log.Printf("Failed to load session: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Something went wrong. Please try again.",
			})
		}

		userID, _ := sess.Get(SessionUserIDKey).(string)
		if userID == "" {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}

		c.Locals(LocalsUserIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user's ID placed in the request locals
// by AuthRequired, or an empty string when unauthenticated.
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(LocalsUserIDKey).(string)
	return userID
}

package handlers

import (
	"errors"
	"log"
	"mime/multipart"

	"warrantytracker/internal/flash"
	"warrantytracker/internal/middleware"
	"warrantytracker/internal/repositories"
	"warrantytracker/internal/services"
	"warrantytracker/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// WarrantyHandler handles the warranty pages: dashboard, listing, view,
// add, edit and delete.
type WarrantyHandler struct {
	service  *services.WarrantyService
	sessions *session.Store
}

// NewWarrantyHandler creates a new WarrantyHandler.
func NewWarrantyHandler(service *services.WarrantyService, sessions *session.Store) *WarrantyHandler {
	return &WarrantyHandler{
		service:  service,
		sessions: sessions,
	}
}

// RegisterRoutes registers the warranty routes. All of them require an
// authenticated session.
func (h *WarrantyHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/dashboard", h.HandleDashboard)

	warranties := router.Group("/warranties")
	warranties.Get("/", h.HandleList)
	warranties.Post("/", h.HandleCreate)
	warranties.Get("/:id", h.HandleView)
	warranties.Put("/:id", h.HandleUpdate)
	warranties.Post("/:id/delete", h.HandleDelete)
}

// HandleDashboard returns the per-user statistics, recent records and the
// expiring-soon list.
func (h *WarrantyHandler) HandleDashboard(c *fiber.Ctx) error {
	data, err := h.service.Dashboard(middleware.UserID(c))
	if err != nil {
		log.Printf("Error loading dashboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load dashboard data. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"stats":         data.Stats,
		"recent":        data.Recent,
		"expiring_soon": data.ExpiringSoon,
		"flashes":       h.popFlashes(c),
	})
}

// HandleList returns one page of the filtered warranty listing.
// Query params: filter (all|active|expiring|expired), search, page.
func (h *WarrantyHandler) HandleList(c *fiber.Ctx) error {
	page, err := h.service.List(
		middleware.UserID(c),
		c.Query("search"),
		c.Query("filter", repositories.FilterAll),
		c.QueryInt("page", 1),
	)
	if err != nil {
		log.Printf("Error listing warranties: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load warranties. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"warranties": page.Warranties,
		"pagination": page.Pagination,
		"filter":     page.Filter,
		"search":     page.Search,
		"flashes":    h.popFlashes(c),
	})
}

// HandleView returns a single warranty with its derived status.
func (h *WarrantyHandler) HandleView(c *fiber.Ctx) error {
	warranty, err := h.service.Get(middleware.UserID(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.addFlash(c, flash.TypeError, "Warranty not found.")
			return c.Redirect("/warranties", fiber.StatusSeeOther)
		}
		log.Printf("Error loading warranty %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load warranty. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"warranty": warranty,
		"flashes":  h.popFlashes(c),
	})
}

// HandleCreate adds a new warranty from the multipart add form.
func (h *WarrantyHandler) HandleCreate(c *fiber.Ctx) error {
	var input services.WarrantyInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing warranty form: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	receipt, file, err := h.receiptUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  services.ValidationErrors{"Failed to read receipt upload."},
		})
	}
	if file != nil {
		defer file.Close()
	}

	if _, err := h.service.Create(middleware.UserID(c), input, receipt); err != nil {
		if verrs, ok := services.AsValidationErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verrs,
			})
		}
		log.Printf("Error creating warranty: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to save warranty. Please try again.",
		})
	}

	h.addFlash(c, flash.TypeSuccess, "Warranty added successfully!")
	return c.Redirect("/warranties", fiber.StatusSeeOther)
}

// HandleUpdate edits an existing warranty from the multipart edit form.
// The remove_receipt=1 field deletes the stored receipt.
func (h *WarrantyHandler) HandleUpdate(c *fiber.Ctx) error {
	var input services.WarrantyInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing warranty form: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	receipt, file, err := h.receiptUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  services.ValidationErrors{"Failed to read receipt upload."},
		})
	}
	if file != nil {
		defer file.Close()
	}

	id := c.Params("id")
	removeReceipt := c.FormValue("remove_receipt") == "1"

	if _, err := h.service.Update(middleware.UserID(c), id, input, receipt, removeReceipt); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.addFlash(c, flash.TypeError, "Warranty not found.")
			return c.Redirect("/warranties", fiber.StatusSeeOther)
		}
		if verrs, ok := services.AsValidationErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verrs,
			})
		}
		log.Printf("Error updating warranty %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to update warranty. Please try again.",
		})
	}

	h.addFlash(c, flash.TypeSuccess, "Warranty updated successfully!")
	return c.Redirect("/warranties/"+id, fiber.StatusSeeOther)
}

// HandleDelete removes a warranty after explicit confirmation. Without
// confirm_delete=yes the request bounces back to the record's view page.
func (h *WarrantyHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	if c.FormValue("confirm_delete") != "yes" {
		return c.Redirect("/warranties/"+id, fiber.StatusSeeOther)
	}

	if err := h.service.Delete(middleware.UserID(c), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			h.addFlash(c, flash.TypeError, "Warranty not found.")
			return c.Redirect("/warranties", fiber.StatusSeeOther)
		}
		log.Printf("Error deleting warranty %s: %v", id, err)
		h.addFlash(c, flash.TypeError, "Failed to delete warranty. Please try again.")
		return c.Redirect("/warranties/"+id, fiber.StatusSeeOther)
	}

	h.addFlash(c, flash.TypeSuccess, "Warranty deleted successfully.")
	return c.Redirect("/warranties", fiber.StatusSeeOther)
}

// receiptUpload extracts the optional receipt_image file from the form.
// A missing file is not an error; the caller must close the returned file
// when it is non-nil.
func (h *WarrantyHandler) receiptUpload(c *fiber.Ctx) (*storage.Upload, multipart.File, error) {
	fileHeader, err := c.FormFile("receipt_image")
	if err != nil || fileHeader == nil {
		return nil, nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Error opening receipt upload: %v", err)
		return nil, nil, err
	}

	return &storage.Upload{
		Reader:       file,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
	}, file, nil
}

func (h *WarrantyHandler) addFlash(c *fiber.Ctx, msgType, text string) {
	sess, err := h.sessions.Get(c)
	if err != nil {
		log.Printf("Failed to load session for flash: %v", err)
		return
	}
	if err := flash.Add(sess, msgType, text); err != nil {
		log.Printf("Failed to save flash message: %v", err)
	}
}

func (h *WarrantyHandler) popFlashes(c *fiber.Ctx) []flash.Message {
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

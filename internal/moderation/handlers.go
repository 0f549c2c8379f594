package moderation

import (
	"context"
	"errors"
	"io"

	"github.com/Carlosrossos/dlh-backend/internal/poi"

	"github.com/gofiber/fiber/v2"
)

// Uploader pushes an image to the external host and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader) (string, error)
}

// RegisterAdminRoutes wires the moderation dashboard. Everything here is
// admin-only except the caller's own contribution list.
func RegisterAdminRoutes(r fiber.Router, svc *Service, authMiddleware, adminMiddleware fiber.Handler) {
	r.Get("/user/contributions", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		mods, err := svc.UserContributions(c.Context(), userID)
		if err != nil {
			return errToHTTP(err)
		}
		if mods == nil {
			mods = []PendingModification{}
		}
		return c.JSON(mods)
	})

	r.Get("/pending", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		mods, err := svc.Pending(c.Context(), c.Query("type"), c.Query("status"))
		if err != nil {
			return errToHTTP(err)
		}
		if mods == nil {
			mods = []PendingModification{}
		}
		return c.JSON(mods)
	})

	r.Get("/stats", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context())
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(stats)
	})

	r.Post("/pending/:id/approve", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			SelectedFields []string `json:"selectedFields"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
			}
		}
		reviewerID, _ := c.Locals("user_id").(string)
		mod, err := svc.Approve(c.Context(), c.Params("id"), reviewerID, body.SelectedFields)
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(mod)
	})

	r.Post("/pending/:id/reject", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Reason string `json:"reason"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
			}
		}
		reviewerID, _ := c.Locals("user_id").(string)
		mod, err := svc.Reject(c.Context(), c.Params("id"), reviewerID, body.Reason)
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(mod)
	})

	r.Delete("/pois/:poiId/comments/:commentId", authMiddleware, adminMiddleware, func(c *fiber.Ctx) error {
		comment, err := svc.DeleteComment(c.Context(), c.Params("poiId"), c.Params("commentId"))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"deletedComment": comment})
	})
}

// RegisterContributionRoutes wires the endpoints that feed the pending queue.
func RegisterContributionRoutes(r fiber.Router, svc *Service, uploader Uploader, authMiddleware, limiter fiber.Handler) {
	r.Post("/", authMiddleware, limiter, func(c *fiber.Ctx) error {
		var payload NewPOIPayload
		if err := c.BodyParser(&payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		userID, _ := c.Locals("user_id").(string)
		mod, err := svc.SubmitNewPOI(c.Context(), userID, payload)
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(mod)
	})

	r.Post("/:id/comments", authMiddleware, limiter, func(c *fiber.Ctx) error {
		var body struct {
			Author string `json:"author"`
			Text   string `json:"text"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		userID, _ := c.Locals("user_id").(string)
		mod, err := svc.SubmitComment(c.Context(), userID, c.Params("id"), body.Author, body.Text)
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(mod)
	})

	r.Post("/:id/photos", authMiddleware, limiter, func(c *fiber.Ctx) error {
		var body struct {
			PhotoURL string `json:"photoUrl"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		userID, _ := c.Locals("user_id").(string)
		mod, err := svc.SubmitPhoto(c.Context(), userID, c.Params("id"), body.PhotoURL)
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(mod)
	})

	r.Post("/:id/photos/upload", authMiddleware, limiter, func(c *fiber.Ctx) error {
		if uploader == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "image host not configured")
		}
		fileHeader, err := c.FormFile("photo")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "photo file required")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "photo file unreadable")
		}
		defer file.Close()

		url, err := uploader.Upload(c.Context(), file)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		userID, _ := c.Locals("user_id").(string)
		mod, err := svc.SubmitPhoto(c.Context(), userID, c.Params("id"), url)
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(mod)
	})

	r.Patch("/:id/edit", authMiddleware, limiter, func(c *fiber.Ctx) error {
		var body struct {
			Changes map[string]any `json:"changes"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		userID, _ := c.Locals("user_id").(string)
		mod, err := svc.SubmitEdit(c.Context(), userID, c.Params("id"), body.Changes)
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(mod)
	})
}

func errToHTTP(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, poi.ErrNotFound), errors.Is(err, poi.ErrCommentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

package poi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		filter := ListFilter{
			Category: c.Query("category"),
			Massif:   c.Query("massif"),
			Search:   c.Query("search"),
			Status:   c.Query("status"),
		}
		pois, err := svc.List(c.Context(), filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if pois == nil {
			pois = []POI{}
		}
		return c.JSON(pois)
	})

	// registered before /:id so "user" is not captured as a poi id
	r.Get("/user/bookmarks", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		pois, err := svc.Bookmarks(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if pois == nil {
			pois = []POI{}
		}
		return c.JSON(pois)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "poi not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/:id/like", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		likes, liked, err := svc.ToggleLike(c.Context(), c.Params("id"), userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "poi not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"likes": likes, "isLiked": liked})
	})

	r.Post("/:id/bookmark", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		bookmarked, count, err := svc.ToggleBookmark(c.Context(), c.Params("id"), userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "poi not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"isBookmarked": bookmarked, "bookmarksCount": count})
	})
}

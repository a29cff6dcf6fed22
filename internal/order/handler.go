package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"parts-storefront/internal/auth"
	"parts-storefront/internal/backend"
)

// Handler exposes order history to users and status transitions to
// admins.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/orders", h.listOrders)
	app.Get("/api/v1/orders/:id", h.getOrder)
	app.Put("/api/v1/admin/orders/:id/status", h.updateStatus)
}

func (h *Handler) listOrders(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	orders, err := h.service.List(c.UserContext())
	if err != nil {
		return writeOrderError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	projection, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeOrderError(c, err)
	}
	return c.JSON(projection)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	if !auth.IsAdminCtx(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin only"})
	}
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if !StatusAllowed(payload.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "unknown status"})
	}

	projection, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), payload.Status)
	if err != nil {
		return writeOrderError(c, err)
	}
	return c.JSON(projection)
}

func writeOrderError(c *fiber.Ctx, err error) error {
	var se *backend.ServerError
	if errors.As(err, &se) {
		return c.Status(se.Status).JSON(fiber.Map{"message": se.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
}

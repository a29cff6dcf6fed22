package catalog

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"parts-storefront/internal/backend"
)

// Handler exposes the catalog to the browser. Catalog browsing is
// public; no token is required.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/catalog", h.listParts)
	app.Get("/api/v1/catalog/:sku/stock", h.partStock)
}

func (h *Handler) listParts(c *fiber.Ctx) error {
	parts, _, err := h.service.Parts(c.UserContext())
	if err != nil {
		return writeBackendError(c, err)
	}
	filtered := Filter(parts, c.Query("search"), c.Query("category"))
	return c.JSON(fiber.Map{"parts": filtered})
}

func (h *Handler) partStock(c *fiber.Ctx) error {
	inv, err := h.service.Inventory(c.UserContext(), c.Params("sku"))
	if err != nil {
		return writeBackendError(c, err)
	}
	return c.JSON(fiber.Map{"sku": inv.SKU, "available": inv.Available()})
}

// writeBackendError maps client errors onto the response: server errors
// keep their status and message, transport errors become a 502.
func writeBackendError(c *fiber.Ctx, err error) error {
	var se *backend.ServerError
	if errors.As(err, &se) {
		return c.Status(se.Status).JSON(fiber.Map{"message": se.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
}

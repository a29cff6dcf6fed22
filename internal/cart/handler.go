package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"parts-storefront/internal/auth"
	"parts-storefront/internal/backend"
)

// Handler exposes cart operations to the browser. All routes require a
// bearer token; the token is forwarded to the marketplace API, which
// owns the cart.
type Handler struct {
	sequencer *Sequencer
}

func NewHandler(s *Sequencer) *Handler {
	return &Handler{sequencer: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart/items", h.addItem)
	app.Put("/api/v1/cart/items", h.setQuantity)
	app.Delete("/api/v1/cart/items", h.removeItem)
	app.Post("/api/v1/checkout", h.checkout)
}

type cartItemRequest struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty,omitempty"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	state, err := h.sequencer.Cart(c.UserContext())
	if err != nil {
		return writeMutationError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.SKU == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "sku is required"})
	}

	state, err := h.sequencer.AddToCart(c.UserContext(), payload.SKU, payload.Qty)
	if err != nil {
		return writeMutationError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) setQuantity(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.SKU == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "sku is required"})
	}

	state, err := h.sequencer.SetQuantity(c.UserContext(), payload.SKU, payload.Qty)
	if err != nil {
		return writeMutationError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.SKU == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "sku is required"})
	}

	state, err := h.sequencer.RemoveItem(c.UserContext(), payload.SKU)
	if err != nil {
		return writeMutationError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	url, err := h.sequencer.Checkout(c.UserContext())
	if err != nil {
		// checkout must not proceed on top of a failed mutation or a
		// backend refusal; the error reaches the user verbatim
		return writeMutationError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// writeMutationError maps sequencer errors to HTTP responses. Partial
// failures surface as a generic mutation failure plus the refetch hint;
// the UI's next cart fetch shows the true state.
func writeMutationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	}
	var partial *PartialMutationError
	if errors.As(err, &partial) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "cart update failed part-way; refresh to see the current cart"})
	}
	var se *backend.ServerError
	if errors.As(err, &se) {
		return c.Status(se.Status).JSON(fiber.Map{"message": se.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
}

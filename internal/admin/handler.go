package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"parts-storefront/internal/auth"
	"parts-storefront/internal/backend"
)

// Handler serves the back-office dashboard. Every route requires the
// admin role claim.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/admin/metrics", h.metrics)
	app.Get("/api/v1/admin/revenue/series", h.revenueSeries)
	app.Get("/api/v1/admin/analytics/top-selling", h.topSelling)
	app.Get("/api/v1/admin/alerts/low-stock", h.lowStock)
}

func (h *Handler) metrics(c *fiber.Ctx) error {
	if !auth.IsAdminCtx(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin only"})
	}
	m, err := h.service.Metrics(c.UserContext())
	if err != nil {
		return writeAdminError(c, err)
	}
	return c.JSON(fiber.Map{"metrics": m})
}

func (h *Handler) revenueSeries(c *fiber.Ctx) error {
	if !auth.IsAdminCtx(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin only"})
	}
	granularity := c.Query("granularity", "day")
	if granularity != "day" && granularity != "month" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "granularity must be day or month"})
	}
	series, err := h.service.RevenueSeries(c.UserContext(), granularity)
	if err != nil {
		return writeAdminError(c, err)
	}
	return c.JSON(fiber.Map{"series": series})
}

func (h *Handler) topSelling(c *fiber.Ctx) error {
	if !auth.IsAdminCtx(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin only"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "5"))

	var statuses []string
	if raw := c.Query("statuses"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				statuses = append(statuses, st)
			}
		}
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "since must be YYYY-MM-DD"})
		}
		since = ts
	}

	rows, err := h.service.TopSelling(c.UserContext(), limit, statuses, since)
	if err != nil {
		return writeAdminError(c, err)
	}
	return c.JSON(fiber.Map{"rows": rows})
}

func (h *Handler) lowStock(c *fiber.Ctx) error {
	if !auth.IsAdminCtx(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin only"})
	}
	min, _ := strconv.Atoi(c.Query("min"))
	zeroCap, err := strconv.Atoi(c.Query("zeroCap", "3"))
	if err != nil {
		zeroCap = 3
	}
	hideZero := c.Query("hideZero") == "1"

	rows, err := h.service.LowStock(c.UserContext(), min, hideZero, zeroCap)
	if err != nil {
		return writeAdminError(c, err)
	}
	return c.JSON(fiber.Map{"items": rows})
}

func writeAdminError(c *fiber.Ctx, err error) error {
	var se *backend.ServerError
	if errors.As(err, &se) {
		return c.Status(se.Status).JSON(fiber.Map{"message": se.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
}

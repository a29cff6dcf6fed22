package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// StaticProvider returns a fixed token. Used in tests and for local
// development against a backend with a long-lived dev token.
type StaticProvider string

func (p StaticProvider) Token(ctx context.Context) (string, error) {
	return string(p), nil
}

// Anonymous never attaches a token.
var Anonymous = StaticProvider("")

// ServiceProvider signs a fresh short-lived token per call, for
// requests the gateway makes on its own behalf (admin aggregation)
// rather than on behalf of a browser session.
type ServiceProvider struct {
	Secret  []byte
	Subject string
}

func (p *ServiceProvider) Token(ctx context.Context) (string, error) {
	claims := jwt.MapClaims{
		"sub":  p.Subject,
		"role": "service",
		"exp":  time.Now().Add(5 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.Secret)
}

type ctxKey struct{}

// WithToken stores a bearer token on the context for the duration of
// one request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

// TokenFromContext returns the stored token, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(ctxKey{}).(string)
	return token
}

// ContextProvider forwards whatever token the incoming request carried.
// The gateway never mints user tokens; the identity provider does, and
// they pass through unchanged, fetched fresh from the context per call.
type ContextProvider struct{}

func (ContextProvider) Token(ctx context.Context) (string, error) {
	return TokenFromContext(ctx), nil
}

// Passthrough is the middleware half of ContextProvider: it copies the
// incoming bearer token into the user context so backend calls made on
// behalf of this request reuse it.
func Passthrough(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token != "" {
		c.SetUserContext(WithToken(c.UserContext(), token))
	}
	return c.Next()
}

// GetUserIDFromCtx extracts the user_id claim from the JWT token stored
// in c.Locals("user") by the JWT middleware. Several handlers need
// this, so it lives here.
func GetUserIDFromCtx(c *fiber.Ctx) (int, error) {
	u := c.Locals("user")
	if u == nil {
		return 0, fiber.ErrUnauthorized
	}
	tok, ok := u.(*jwt.Token)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	if raw, ok := claims["user_id"]; ok {
		switch v := raw.(type) {
		case float64:
			return int(v), nil
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case string:
			id, err := strconv.Atoi(v)
			if err != nil {
				return 0, fiber.ErrUnauthorized
			}
			return id, nil
		default:
			return 0, fiber.ErrUnauthorized
		}
	}
	return 0, fiber.ErrUnauthorized
}

// IsAdminCtx reports whether the token in c carries the admin role.
func IsAdminCtx(c *fiber.Ctx) bool {
	u, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return false
	}
	claims, ok := u.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}

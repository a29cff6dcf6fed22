package community

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"parts-storefront/internal/auth"
	"parts-storefront/internal/backend"
)

// Handler exposes community Q&A. Reads are public; votes, answers and
// comments require a token.
type Handler struct {
	service    *Service
	reconciler *Reconciler
}

func NewHandler(s *Service, r *Reconciler) *Handler {
	return &Handler{service: s, reconciler: r}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/posts", h.listPosts)
	app.Get("/api/v1/posts/:id", h.getPost)
	app.Get("/api/v1/posts/:id/comments", h.listComments)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/posts/:id/vote", h.vote)
	app.Post("/api/v1/posts/:id/answers", h.addAnswer)
	app.Post("/api/v1/posts/:id/comments", h.addComment)
}

func (h *Handler) listPosts(c *fiber.Ctx) error {
	posts, err := h.service.Posts(c.UserContext(), c.Query("sort", "top"))
	if err != nil {
		return writeCommunityError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

func (h *Handler) getPost(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeCommunityError(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) listComments(c *fiber.Ctx) error {
	comments, err := h.reconciler.RevalidateComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeCommunityError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

type voteRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) vote(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(voteRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Delta != 1 && payload.Delta != -1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "delta must be 1 or -1"})
	}
	postID := c.Params("id")

	// seed the reconciler with the caller's server-confirmed state so
	// the single-step transition rules apply to what the server knows
	detail, err := h.service.Get(c.UserContext(), postID)
	if err != nil {
		return writeCommunityError(c, err)
	}
	h.reconciler.Seed(postID, detail.Post.MyVote, detail.Post.Votes)

	var state VoteState
	if payload.Delta == 1 {
		state, err = h.reconciler.Upvote(c.UserContext(), postID)
	} else {
		state, err = h.reconciler.Downvote(c.UserContext(), postID)
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		}
		if errors.Is(err, ErrVoteInFlight) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		}
		return writeCommunityError(c, err)
	}
	return c.JSON(fiber.Map{"votes": state.VoteCount, "myVote": state.CurrentVote})
}

type answerRequest struct {
	Body string `json:"body"`
}

func (h *Handler) addAnswer(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(answerRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	body := strings.TrimSpace(payload.Body)
	if body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "answer body is required"})
	}

	detail, err := h.service.AddAnswer(c.UserContext(), c.Params("id"), body)
	if err != nil {
		return writeCommunityError(c, err)
	}
	return c.JSON(detail)
}

type commentRequest struct {
	Text       string `json:"text"`
	AuthorName string `json:"authorName,omitempty"`
}

func (h *Handler) addComment(c *fiber.Ctx) error {
	if _, err := auth.GetUserIDFromCtx(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(commentRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "comment text is required"})
	}

	comments, err := h.reconciler.AddComment(c.UserContext(), c.Params("id"), payload.AuthorName, text)
	if err != nil {
		if errors.Is(err, ErrCommentInFlight) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		}
		return writeCommunityError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

func writeCommunityError(c *fiber.Ctx, err error) error {
	var se *backend.ServerError
	if errors.As(err, &se) {
		return c.Status(se.Status).JSON(fiber.Map{"message": se.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
}

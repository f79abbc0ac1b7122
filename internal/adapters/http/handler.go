package httpadapter

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/PabloGalante/lawless-ai/internal/adapters/llm"
	"github.com/PabloGalante/lawless-ai/internal/app/conversation"
	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// MaxHistory caps the history accepted by the completion endpoint.
const MaxHistory = 10

type Server struct {
	svc        *conversation.Service
	completion domain.CompletionClient
}

// NewServer builds the fiber app. completion backs POST /api/generate and is
// usually the same provider client the service uses.
func NewServer(svc *conversation.Service, completion domain.CompletionClient) *fiber.App {
	s := &Server{svc: svc, completion: completion}

	app := fiber.New(fiber.Config{
		AppName:               "lawless",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: false}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(withRequestID)
	app.Use(withLogging)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Completion proxy: provider credentials stay on this side.
	app.Post("/api/generate", s.handleGenerate)
	app.All("/api/generate", methodNotAllowed)

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/domain", s.handleSelectDomain)
	api.Get("/conversations", s.handleListConversations)
	api.Post("/conversations", s.handleCreateConversation)
	api.Get("/conversations/:id", s.handleGetConversation)
	api.Post("/conversations/:id/select", s.handleSelectConversation)
	api.Delete("/conversations/:id", s.handleDeleteConversation)
	api.Post("/messages", s.handleSendMessage)

	return app
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type domainRequest struct {
	Domain string `json:"domain"`
}

type sendMessageRequest struct {
	Text   string `json:"text"`
	Domain string `json:"domain,omitempty"`
}

type sendMessageResponse struct {
	ConversationID   domain.ConversationID      `json:"conversationId"`
	UserMessage      *domain.Message            `json:"userMessage"`
	AssistantMessage *domain.Message            `json:"assistantMessage"`
	Notification     *conversation.Notification `json:"notification,omitempty"`
	Persisted        string                     `json:"persisted"`
}

// ─────────────────────────────────────────────
// Completion endpoint
// ─────────────────────────────────────────────

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	log := observability.LoggerFromContext(ctx)

	var req llm.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message is required")
	}
	if !req.Domain.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "domain must be one of legal, business, coding")
	}

	history := req.ConversationHistory
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	log.Info("generate", "domain", req.Domain, "history", len(history))

	result, err := s.completion.Complete(ctx, req.Message, req.Domain, history)
	if err != nil {
		var ce *domain.CompletionError
		if !errors.As(err, &ce) {
			ce = domain.ClassifyCompletionError(err)
		}
		log.Error("generate failed", "kind", ce.Kind, "error", err)
		return c.Status(ce.Kind.HTTPStatus()).JSON(llm.ErrorResponse{Error: ce.Notice()})
	}
	if strings.TrimSpace(result) == "" {
		result = domain.EmptyCompletionText
	}
	return c.JSON(llm.GenerateResponse{Result: result})
}

// ─────────────────────────────────────────────
// Conversation API
// ─────────────────────────────────────────────

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.svc.Snapshot())
}

func (s *Server) handleSelectDomain(c *fiber.Ctx) error {
	var req domainRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	d, err := domain.ParseDomain(req.Domain)
	if err != nil {
		return err
	}
	if err := s.svc.SelectDomain(d); err != nil {
		return err
	}
	return c.JSON(s.svc.Snapshot())
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"conversations": s.svc.Snapshot().Conversations})
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req domainRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}

	d := s.svc.Snapshot().SelectedDomain
	if req.Domain != "" {
		parsed, err := domain.ParseDomain(req.Domain)
		if err != nil {
			return err
		}
		d = parsed
	}

	conv, err := s.svc.CreateConversation(c.UserContext(), d)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id := domain.ConversationID(c.Params("id"))
	conv, ok := s.svc.Conversation(id)
	if !ok {
		return domain.NotFound("conversation %s not found", id)
	}
	return c.JSON(conv)
}

func (s *Server) handleSelectConversation(c *fiber.Ctx) error {
	id := domain.ConversationID(c.Params("id"))
	if !s.svc.SelectConversation(c.UserContext(), id) {
		return domain.NotFound("conversation %s not found", id)
	}
	return c.JSON(s.svc.Snapshot())
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	id := domain.ConversationID(c.Params("id"))
	if !s.svc.DeleteConversation(c.UserContext(), id) {
		return domain.NotFound("conversation %s not found", id)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	out, err := s.svc.SendMessage(c.UserContext(), conversation.SendMessageInput{
		Text:   req.Text,
		Domain: domain.Domain(strings.ToLower(strings.TrimSpace(req.Domain))),
	})
	if err != nil {
		return err
	}

	return c.JSON(sendMessageResponse{
		ConversationID:   out.ConversationID,
		UserMessage:      out.UserMessage,
		AssistantMessage: out.AssistantMessage,
		Notification:     out.Notification,
		Persisted:        out.Persisted.String(),
	})
}

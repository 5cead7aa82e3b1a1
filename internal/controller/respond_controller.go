package controller

import (
	"context"
	"encoding/json"

	"persona-rag-be/internal/dto"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/internal/pkg/serverutils"
	"persona-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IRespondController interface {
	RegisterRoutes(r fiber.Router)
	Respond(ctx *fiber.Ctx) error
	Critique(ctx *fiber.Ctx) error
	ListPersonas(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type respondController struct {
	respondService service.IRespondService
	logger         logger.ILogger
}

func NewRespondController(respondService service.IRespondService, log logger.ILogger) IRespondController {
	return &respondController{
		respondService: respondService,
		logger:         log,
	}
}

func (c *respondController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/respond/v1")
	h.Post("", c.Respond)
	h.Post("critique", c.Critique)
	h.Get("personas", c.ListPersonas)
}

func (c *respondController) Respond(ctx *fiber.Ctx) error {
	var req dto.RespondRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	res, err := c.respondService.Respond(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Response generated", res))
}

func (c *respondController) Critique(ctx *fiber.Ctx) error {
	var req dto.CritiqueRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	res, err := c.respondService.Critique(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Critique generated", res))
}

func (c *respondController) ListPersonas(ctx *fiber.Ctx) error {
	personas, err := c.respondService.ListPersonas()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Available personas", personas))
}

// ServeWs streams a single respond request over a websocket: the client
// sends one RespondRequest frame, the server answers with status, text
// and result frames, then closes.
func (c *respondController) ServeWs(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req dto.RespondRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			c.writeEvent(conn, dto.StreamEvent{Type: "result", Result: &dto.RespondResult{
				Degraded: true,
				Err:      "invalid request frame",
			}})
			return
		}

		// The fiber request context is gone once the connection is
		// hijacked; the stream runs on its own context.
		events, err := c.respondService.RespondStream(context.Background(), &req)
		if err != nil {
			c.writeEvent(conn, dto.StreamEvent{Type: "result", Result: &dto.RespondResult{
				Degraded: true,
				Err:      err.Error(),
			}})
			return
		}

		for event := range events {
			if !c.writeEvent(conn, event) {
				return
			}
		}
	})(ctx)
}

func (c *respondController) writeEvent(conn *websocket.Conn, event dto.StreamEvent) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Warn("respond-controller", "websocket write failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

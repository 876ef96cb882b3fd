package controller

import (
	"strconv"

	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/serverutils"
	"elearning-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

const HeaderRateLimitRemaining = "X-RateLimit-Remaining"

type IChatbotController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	SendMessage(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	GetSessionContext(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	UpdatePreferences(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
	Suggestions(ctx *fiber.Ctx) error
	LearningProfile(ctx *fiber.Ctx) error
}

type chatbotController struct {
	service service.IChatbotService
}

func NewChatbotController(service service.IChatbotService) IChatbotController {
	return &chatbotController{service: service}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chatbot/v1")
	h.Use(auth)
	h.Post("/messages", c.SendMessage)
	h.Get("/sessions", c.ListSessions)
	h.Get("/sessions/:id/context", c.GetSessionContext)
	h.Get("/sessions/:id/history", c.GetHistory)
	h.Put("/sessions/:id/preferences", c.UpdatePreferences)
	h.Delete("/sessions/:id", c.EndSession)
	h.Get("/suggestions", c.Suggestions)
	h.Get("/profile", c.LearningProfile)
}

// SendMessage always answers 200 with a ChatResponse, except for bodies that
// cannot be parsed at all. Failures are reported through error_code.
func (c *chatbotController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	userId := serverutils.UserID(ctx)
	res := c.service.SendMessage(ctx.UserContext(), userId, &req)
	if remaining := c.service.RemainingMessages(userId); remaining >= 0 {
		ctx.Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatbotController) ListSessions(ctx *fiber.Ctx) error {
	res, err := c.service.ListSessions(ctx.UserContext(), serverutils.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *chatbotController) GetSessionContext(ctx *fiber.Ctx) error {
	res, err := c.service.GetSessionContext(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session context", res))
}

func (c *chatbotController) GetHistory(ctx *fiber.Ctx) error {
	res, err := c.service.GetHistory(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("id"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatbotController) UpdatePreferences(ctx *fiber.Ctx) error {
	var req dto.UpdatePreferencesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpdatePreferences(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update preferences", res))
}

func (c *chatbotController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.UserContext(), serverutils.UserID(ctx), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session ended", nil))
}

func (c *chatbotController) Suggestions(ctx *fiber.Ctx) error {
	res, err := c.service.SuggestCourses(ctx.UserContext(), serverutils.UserID(ctx), ctx.Query("q"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get suggestions", res))
}

func (c *chatbotController) LearningProfile(ctx *fiber.Ctx) error {
	res, err := c.service.GetLearningProfile(ctx.UserContext(), serverutils.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get learning profile", res))
}

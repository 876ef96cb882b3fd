package controller

import (
	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/serverutils"
	"elearning-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IKnowledgeController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler, admin fiber.Handler)
	AddItem(ctx *fiber.Ctx) error
	AddFAQ(ctx *fiber.Ctx) error
	SyncCourse(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type knowledgeController struct {
	service service.IKnowledgeService
}

func NewKnowledgeController(service service.IKnowledgeService) IKnowledgeController {
	return &knowledgeController{service: service}
}

func (c *knowledgeController) RegisterRoutes(r fiber.Router, auth fiber.Handler, admin fiber.Handler) {
	h := r.Group("/knowledge/v1")
	h.Use(auth, admin)
	h.Post("/items", c.AddItem)
	h.Post("/faq", c.AddFAQ)
	h.Post("/courses", c.SyncCourse)
	h.Get("/stats", c.Stats)
}

func (c *knowledgeController) AddItem(ctx *fiber.Ctx) error {
	var req dto.AddKnowledgeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddKnowledge(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if res.Queued {
		status = fiber.StatusAccepted
	}
	return ctx.Status(status).JSON(serverutils.SuccessResponse("Success add knowledge", res))
}

func (c *knowledgeController) AddFAQ(ctx *fiber.Ctx) error {
	var req dto.AddFAQRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddFAQ(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success add faq", res))
}

func (c *knowledgeController) SyncCourse(ctx *fiber.Ctx) error {
	var req dto.SyncCourseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SyncCourse(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success sync course", res))
}

func (c *knowledgeController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.Stats(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get knowledge stats", res))
}

package gateway

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway/store"
)

// Handler exposes the gateway over path-routed HTTP endpoints. Each path pins
// the operation; the body supplies the rest of the envelope.
type Handler struct {
	service *Service
}

// NewHandler constructs a gateway HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PutItem handles POST /put-item.
func (h *Handler) PutItem(c *fiber.Ctx) error { return h.execute(c, OpPut) }

// GetItem handles POST /get-item.
func (h *Handler) GetItem(c *fiber.Ctx) error { return h.execute(c, OpGet) }

// UpdateItem handles POST /update-item.
func (h *Handler) UpdateItem(c *fiber.Ctx) error { return h.execute(c, OpUpdate) }

// DeleteItem handles POST /delete-item.
func (h *Handler) DeleteItem(c *fiber.Ctx) error { return h.execute(c, OpDelete) }

// Query handles POST /query.
func (h *Handler) Query(c *fiber.Ctx) error { return h.execute(c, OpQuery) }

// Scan handles POST /scan.
func (h *Handler) Scan(c *fiber.Ctx) error { return h.execute(c, OpScan) }

func (h *Handler) execute(c *fiber.Ctx, op Operation) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req.Operation = op

	resp, err := h.service.Execute(c.UserContext(), req)
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, store.ErrBadExpression):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(resp)
}

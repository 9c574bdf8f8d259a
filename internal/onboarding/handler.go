package onboarding

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/otp"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/session"
)

// InstallationHeader identifies the app installation a session belongs to.
const InstallationHeader = "X-Installation-ID"

// Handler exposes the onboarding pipeline over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs an onboarding HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	NationalID   string `json:"nationalId"`
	MobileNumber string `json:"mobileNumber"`
}

type transactionResponse struct {
	TransactionID     string `json:"transactionId"`
	ExpiresAt         string `json:"expiresAt"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	FullName          string `json:"fullName,omitempty"`
}

// Start handles POST /onboarding/start.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.NationalID == "" || req.MobileNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "nationalId and mobileNumber are required")
	}

	res, err := h.service.Start(c.UserContext(), req.NationalID, req.MobileNumber)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(transactionResponse{
		TransactionID:     res.Transaction.ID,
		ExpiresAt:         res.Transaction.ExpiresAt.UTC().Format(time.RFC3339),
		AttemptsRemaining: res.Transaction.AttemptsRemaining,
		FullName:          res.FullName,
	})
}

// Resend handles POST /onboarding/resend.
func (h *Handler) Resend(c *fiber.Ctx) error {
	var req struct {
		NationalID string `json:"nationalId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Resend(c.UserContext(), req.NationalID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(transactionResponse{
		TransactionID:     tx.ID,
		ExpiresAt:         tx.ExpiresAt.UTC().Format(time.RFC3339),
		AttemptsRemaining: tx.AttemptsRemaining,
	})
}

// Confirm handles POST /onboarding/confirm.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req struct {
		NationalID string `json:"nationalId"`
		Code       string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	installationID := c.Get(InstallationHeader)
	if installationID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing "+InstallationHeader+" header")
	}

	sess, err := h.service.Confirm(c.UserContext(), req.NationalID, req.Code, installationID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(sess)
}

// Cancel handles POST /onboarding/cancel.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	var req struct {
		NationalID string `json:"nationalId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Cancel(req.NationalID); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Session handles GET /session.
func (h *Handler) Session(c *fiber.Ctx) error {
	installationID := c.Get(InstallationHeader)
	if installationID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing "+InstallationHeader+" header")
	}
	sess, err := h.service.Session(c.UserContext(), installationID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(sess)
}

// Logout handles POST /session/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	installationID := c.Get(InstallationHeader)
	if installationID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing "+InstallationHeader+" header")
	}
	if err := h.service.Logout(c.UserContext(), installationID); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// mapError translates pipeline outcomes to HTTP. Wrong code and expired code
// are deliberately distinct messages: the user can retry one but not the
// other.
func mapError(err error) error {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "identity not found")
	case errors.Is(err, otp.ErrCodeNotNumeric):
		return fiber.NewError(http.StatusUnprocessableEntity, "code must contain digits only")
	case errors.Is(err, otp.ErrWrongCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return fiber.NewError(http.StatusBadRequest, "attempt budget exhausted, restart onboarding")
	case errors.Is(err, otp.ErrExpired):
		return fiber.NewError(http.StatusBadRequest, "code expired, a new one was sent")
	case errors.Is(err, otp.ErrNoTransaction), errors.Is(err, ErrNoAttempt):
		return fiber.NewError(http.StatusConflict, "no onboarding attempt in progress")
	case errors.Is(err, session.ErrNoSession):
		return fiber.NewError(http.StatusUnauthorized, "not signed in")
	case provider.IsTransient(err):
		return fiber.NewError(http.StatusBadGateway, "identity provider unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

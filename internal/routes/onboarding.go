package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/onboarding"
)

// RegisterOnboardingRoutes wires the identity-verification pipeline and
// session endpoints. Endpoints that trigger an SMS go through the OTP rate
// limiter.
func RegisterOnboardingRoutes(r fiber.Router, h *onboarding.Handler, otpLimiter fiber.Handler) {
	r.Post("/onboarding/start", otpLimiter, h.Start)
	r.Post("/onboarding/resend", otpLimiter, h.Resend)
	r.Post("/onboarding/confirm", h.Confirm)
	r.Post("/onboarding/cancel", h.Cancel)

	r.Get("/session", h.Session)
	r.Post("/session/logout", h.Logout)
}

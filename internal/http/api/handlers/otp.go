package handlers

import (
	"errors"
	"net/http"

	"github.com/clearlabel/transparency/internal/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// OTPHandler serves email verification endpoints.
type OTPHandler struct {
	otp *service.OTPService
}

// NewOTPHandler constructs an OTPHandler.
func NewOTPHandler(otp *service.OTPService) *OTPHandler {
	return &OTPHandler{otp: otp}
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Verify confirms an account with its emailed code. No session token is issued.
func (h *OTPHandler) Verify(c *gin.Context) {
	var body verifyOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.otp.Verify(c.Request.Context(), body.Email, body.OTP)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "OTP verified successfully"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User not found"})
	case errors.Is(err, service.ErrInvalidOTP):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OTP"})
	case errors.Is(err, service.ErrOTPExpired):
		c.JSON(http.StatusBadRequest, gin.H{"message": "OTP expired"})
	default:
		log.WithError(err).Error("verify otp failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verify otp failed"})
	}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

// Send issues a fresh code, replacing any pending one.
func (h *OTPHandler) Send(c *gin.Context) {
	var body sendOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.otp.Send(c.Request.Context(), body.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User not found"})
	default:
		log.WithError(err).Error("send otp failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send otp failed"})
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"budgetauth/internal/domain/models"
	httpmiddleware "budgetauth/internal/http/middleware"
	jwtlib "budgetauth/internal/lib/jwt"
	"budgetauth/internal/lib/validate"
	"budgetauth/internal/ratelimit"
	"budgetauth/internal/services/auth"
	"budgetauth/internal/storage"

	"github.com/gin-gonic/gin"
)

// AuthService is the surface of the auth service the handlers consume.
type AuthService interface {
	Register(ctx context.Context, clientKey, username, email, password, currency string) (int64, error)
	Login(ctx context.Context, email, password string) (*models.User, auth.TokenPair, error)
	Logout(ctx context.Context, userID int64, accessToken string) error
	UpdateUser(ctx context.Context, authUserID, userID int64, upd auth.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, authUserID, userID int64, password string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

// Sweeper is the on-demand trigger of the cleanup job.
type Sweeper interface {
	Trigger()
}

type AuthHandler struct {
	auth    AuthService
	sweeper Sweeper
}

func NewAuthHandler(authService AuthService, sweeper Sweeper) *AuthHandler {
	return &AuthHandler{auth: authService, sweeper: sweeper}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Currency string `json:"currency"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	userID, err := h.auth.Register(c.Request.Context(), c.ClientIP(), req.Username, req.Email, req.Password, req.Currency)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user_id": userID,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"currency":      user.Currency,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetInt64(httpmiddleware.ContextUserID)
	token := c.GetString(httpmiddleware.ContextAccessToken)

	if err := h.auth.Logout(c.Request.Context(), userID, token); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logout Successfully"})
}

type updateUserRequest struct {
	NewUsername string `json:"new_username"`
	NewEmail    string `json:"new_email"`
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password"`
	NewCurrency string `json:"new_currency"`
}

func (h *AuthHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid user id"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, err := h.auth.UpdateUser(c.Request.Context(), c.GetInt64(httpmiddleware.ContextUserID), userID, auth.UserUpdate{
		NewUsername: req.NewUsername,
		NewEmail:    req.NewEmail,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		NewCurrency: req.NewCurrency,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"currency": user.Currency,
	})
}

type deleteUserRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid user id"})
		return
	}

	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := h.auth.DeleteUser(c.Request.Context(), c.GetInt64(httpmiddleware.ContextUserID), userID, req.Password); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent"})
}

type resetPasswordRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

// CleanupTokens enqueues a sweep and returns immediately; the work runs on the
// sweeper's own goroutine.
func (h *AuthHandler) CleanupTokens(c *gin.Context) {
	h.sweeper.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"message": "Token cleanup scheduled"})
}

// abortWithError maps service error kinds to HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Account creation rate limit exceeded! Please wait before trying again."})
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, storage.ErrTokenAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"detail": "Email already registered"})
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
	case errors.Is(err, auth.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to modify this user's profile"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect email or password"})
	case errors.Is(err, validate.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid email address"})
	case errors.Is(err, validate.ErrPasswordTooWeak):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Password does not meet complexity requirements"})
	case errors.Is(err, jwtlib.ErrTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Expired access token"})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, jwtlib.ErrTokenMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid access token"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ngvinh/circulib/internal/models"
	"github.com/ngvinh/circulib/internal/services"
)

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, user, "Account created successfully")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	result, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString("token")
	if token == "" {
		respondBadRequest(c, "No token to revoke", nil)
		return
	}

	if err := h.userService.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, nil, "Logged out")
}

// SetUserLock is the administrative lock/unlock toggle.
func (h *AuthHandler) SetUserLock(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.SetUserLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	user, err := h.userService.SetLock(c.Request.Context(), userID, *req.Locked, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Account unlocked"
	if *req.Locked {
		message = "Account locked"
	}
	respondSuccess(c, http.StatusOK, user, message)
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	page, limit := pageParams(c)

	result, err := h.userService.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "")
}

func (h *AuthHandler) Profile(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		respondError(c, models.ErrUserNotFound)
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, profile, "")
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"fieldops_backend/middleware"
	"fieldops_backend/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=150"`
	Password string `json:"password" binding:"required,min=3,max=128"`
}

// Структурированное логирование для авторизации
func logAuthOperation(operation, email, userID string, details map[string]interface{}) {
	logData := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"operation": operation,
		"email":     email,
		"user_id":   userID,
	}

	for key, value := range details {
		logData[key] = value
	}

	logJSON, _ := json.Marshal(logData)
	log.Printf("AUTH_LOG: %s", string(logJSON))
}

// Login проверяет email и пароль и выдает JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logAuthOperation("login_validation_error", req.Email, "", map[string]interface{}{
			"error":      err.Error(),
			"status":     "failed",
			"ip_address": c.ClientIP(),
		})
		respondError(c, http.StatusBadRequest, "Invalid email or password")
		return
	}

	logAuthOperation("login_attempt", req.Email, "", map[string]interface{}{
		"ip_address": c.ClientIP(),
		"user_agent": c.GetHeader("User-Agent"),
	})

	user, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := "failed"
		if !errors.Is(err, services.ErrInvalidCredentials) {
			status = "error"
		}
		logAuthOperation("login_failed", req.Email, "", map[string]interface{}{
			"status":     status,
			"ip_address": c.ClientIP(),
		})
		if status == "error" {
			h.respondBackendError(c, err, "Failed to authenticate")
			return
		}
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := h.Auth.IssueToken(user, h.Now())
	if err != nil {
		logAuthOperation("token_issue_error", req.Email, user.ID, map[string]interface{}{
			"error":  err.Error(),
			"status": "failed",
		})
		respondError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	logAuthOperation("login_success", req.Email, user.ID, map[string]interface{}{
		"role":   user.Role,
		"status": "success",
	})

	respondSuccess(c, http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt,
		"user":      user,
	})
}

// Me возвращает текущего пользователя и его область доступа
func (h *Handler) Me(c *gin.Context) {
	user := middleware.GetCurrentUser(c)
	scope := middleware.GetScope(c)
	respondSuccess(c, http.StatusOK, gin.H{
		"user":         user,
		"unrestricted": scope.Unrestricted,
		"regionIds":    scope.RegionIDs,
	})
}

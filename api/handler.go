package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/dashboard"
	"fieldops_backend/middleware"
	"fieldops_backend/observability"
	"fieldops_backend/services"

	"github.com/gin-gonic/gin"
)

// Deps зависимости обработчиков API
type Deps struct {
	Backend    backend.Backend
	Aggregator *dashboard.Aggregator
	Reports    *services.ReportService
	Exports    *services.ExportService
	Users      *services.UserService
	Blobs      backend.BlobStore
	Auth       *middleware.AuthMiddleware
	Metrics    *observability.Metrics

	// Cache сбрасывается после записей, влияющих на статистику. Может быть nil
	Cache *services.CacheService

	Location      *time.Location
	MaxUploadSize int64
	Logger        *log.Logger

	// Now источник текущего времени, по умолчанию time.Now
	Now func() time.Time
}

// Handler обработчики HTTP API
type Handler struct {
	Deps
}

// NewHandler создает обработчики API
func NewHandler(deps Deps) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = 10 << 20
	}
	return &Handler{Deps: deps}
}

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "error": message})
}

// respondBackendError отвечает кодом, соответствующим ошибке бэкенда.
// Текст исходной ошибки клиенту не отдается
func (h *Handler) respondBackendError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Printf("❌ %s: %v", message, err)
	}
	respondError(c, status, message)
}

func statusFor(err error) int {
	if errors.Is(err, services.ErrInvalidCredentials) {
		return http.StatusUnauthorized
	}
	switch backend.CodeOf(err) {
	case backend.CodeNotFound, backend.CodeUnknownCollection:
		return http.StatusNotFound
	case backend.CodeForeignKey, backend.CodeUniqueViolation:
		return http.StatusConflict
	case backend.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// invalidateStats сбрасывает кэш статистики после записи
func (h *Handler) invalidateStats(c *gin.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.InvalidatePrefix(c.Request.Context(), dashboard.CachePrefix); err != nil {
		h.Logger.Printf("⚠️ Не удалось сбросить кэш статистики: %v", err)
	}
}

package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"fieldops_backend/middleware"
	"fieldops_backend/models"
	"fieldops_backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedPhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadIncidentPhoto сохраняет фото инцидента и записывает его адрес в imageUrl
func (h *Handler) UploadIncidentPhoto(c *gin.Context) {
	id := c.Param("id")
	if !h.checkRowAccess(c, models.CollectionIncidents, id) {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadSize)
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Photo file is required")
		return
	}
	if fileHeader.Size > h.MaxUploadSize {
		respondError(c, http.StatusRequestEntityTooLarge, "Photo is too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedPhotoExtensions[ext] {
		respondError(c, http.StatusBadRequest, "Unsupported photo format")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read photo")
		return
	}
	defer file.Close()

	name := "incidents/" + id + "/" + uuid.New().String() + ext
	url, err := h.Blobs.Upload(c.Request.Context(), name, file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.respondBackendError(c, err, "Failed to store photo")
		return
	}

	incidents := realtime.New[models.Incident](h.Backend, models.CollectionIncidents, realtime.Options[models.Incident]{
		Scope:   middleware.GetScope(c).CollectionPredicates(models.CollectionIncidents),
		Logger:  h.Logger,
		Metrics: h.Metrics,
	})
	incident, err := incidents.Update(c.Request.Context(), id, realtime.Fields{"imageUrl": url})
	if err != nil {
		h.respondBackendError(c, err, "Failed to update incident")
		return
	}

	h.Logger.Printf("📷 Фото инцидента %s сохранено: %s", id, url)
	respondSuccess(c, http.StatusOK, incident)
}

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"fieldops_backend/dashboard"
	"fieldops_backend/middleware"
	"fieldops_backend/services"

	"github.com/gin-gonic/gin"
)

// parseDashboardFilter читает фильтр из query: timeFrame, from, to, regionId, engineerId.
// Даты принимаются в формате 2006-01-02 (часовой пояс сервиса) или RFC 3339
func (h *Handler) parseDashboardFilter(c *gin.Context) (dashboard.Filter, error) {
	tf, err := dashboard.ParseTimeFrame(c.Query("timeFrame"))
	if err != nil {
		return dashboard.Filter{}, err
	}

	filter := dashboard.Filter{
		TimeFrame:  tf,
		RegionID:   c.Query("regionId"),
		EngineerID: c.Query("engineerId"),
	}
	if tf == dashboard.TimeFrameCustom {
		from, err := h.parseDate(c.Query("from"))
		if err != nil {
			return dashboard.Filter{}, fmt.Errorf("invalid from: %w", err)
		}
		to, err := h.parseDate(c.Query("to"))
		if err != nil {
			return dashboard.Filter{}, fmt.Errorf("invalid to: %w", err)
		}
		filter.DateRange = &dashboard.DateRange{From: from, To: to}
	}
	return filter, nil
}

func (h *Handler) parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, h.Location); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// statsFor считает статистику в варианте, соответствующем роли пользователя.
// Инженер видит собственные отчеты и инциденты в пределах своих регионов
func (h *Handler) statsFor(c *gin.Context, filter dashboard.Filter) dashboard.Stats {
	user := middleware.GetCurrentUser(c)
	scope := middleware.GetScope(c)
	if user != nil && user.IsAdmin() {
		return h.Aggregator.ComputeStats(c.Request.Context(), filter)
	}
	userID := ""
	if user != nil {
		userID = user.ID
	}
	return h.Aggregator.ComputeEngineerStats(c.Request.Context(), userID, scope.DashboardFilter(filter))
}

// GetDashboardStats возвращает статистику дашборда
func (h *Handler) GetDashboardStats(c *gin.Context) {
	filter, err := h.parseDashboardFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid dashboard filter")
		return
	}
	respondSuccess(c, http.StatusOK, h.statsFor(c, filter))
}

// ExportDashboard выгружает статистику дашборда в xlsx или pdf
func (h *Handler) ExportDashboard(c *gin.Context) {
	filter, err := h.parseDashboardFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid dashboard filter")
		return
	}
	format := c.DefaultQuery("format", services.ExportFormatXLSX)
	stats := h.statsFor(c, filter)

	var buf bytes.Buffer
	switch format {
	case services.ExportFormatXLSX:
		err = h.Exports.DashboardXLSX(&buf, stats)
	case services.ExportFormatPDF:
		err = h.Exports.DashboardPDF(&buf, stats)
	default:
		respondError(c, http.StatusBadRequest, "Unsupported export format")
		return
	}
	if err != nil {
		h.Logger.Printf("❌ Ошибка выгрузки дашборда: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to export dashboard")
		return
	}

	h.sendFile(c, fmt.Sprintf("dashboard_%s.%s", h.Now().In(h.Location).Format("20060102_150405"), format), format, buf.Bytes())
}

func (h *Handler) sendFile(c *gin.Context, fileName, format string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, services.ContentType(format), data)
}

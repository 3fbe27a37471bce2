package api

import (
	"bytes"
	"fmt"
	"net/http"

	"fieldops_backend/dashboard"
	"fieldops_backend/middleware"
	"fieldops_backend/models"
	"fieldops_backend/services"

	"github.com/gin-gonic/gin"
)

// CreateReport создает отчет вместе с рабочими и техникой
func (h *Handler) CreateReport(c *gin.Context) {
	var input services.ReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := middleware.GetCurrentUser(c)
	if !user.IsAdmin() {
		// Инженер создает отчеты только от своего имени и в своих регионах
		input.EngineerID = user.ID
		if !middleware.GetScope(c).Allows(input.RegionID) {
			respondError(c, http.StatusForbidden, "Region is not available")
			return
		}
	} else if input.EngineerID == "" {
		input.EngineerID = user.ID
	}

	report, err := h.Reports.CreateReport(c.Request.Context(), input)
	if err != nil {
		h.respondBackendError(c, err, "Failed to create report")
		return
	}
	h.invalidateStats(c)
	respondSuccess(c, http.StatusCreated, report)
}

// GetReport возвращает отчет со связями
func (h *Handler) GetReport(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// DeleteReport удаляет отчет и его связи
func (h *Handler) DeleteReport(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}

	user := middleware.GetCurrentUser(c)
	if !user.IsAdmin() && report.EngineerID != user.ID {
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}

	if err := h.Reports.DeleteReport(c.Request.Context(), report.ID); err != nil {
		h.respondBackendError(c, err, "Failed to delete report")
		return
	}
	h.invalidateStats(c)
	respondSuccess(c, http.StatusOK, gin.H{"id": report.ID})
}

// ExportReports выгружает отчеты за период в xlsx
func (h *Handler) ExportReports(c *gin.Context) {
	filter, err := h.parseDashboardFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid report filter")
		return
	}
	window, err := dashboard.ResolveWindow(filter.TimeFrame, filter.DateRange, h.Now(), h.Location)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid report filter")
		return
	}

	scope := middleware.GetScope(c)
	query := services.ReportQuery{
		From:       window.From,
		To:         window.To,
		RegionID:   filter.RegionID,
		EngineerID: filter.EngineerID,
	}
	if !scope.Unrestricted {
		query.RegionIDs = scope.RegionIDs
	}

	reports, err := h.Reports.ListReports(c.Request.Context(), query)
	if err != nil {
		h.respondBackendError(c, err, "Failed to fetch reports")
		return
	}

	var buf bytes.Buffer
	if err := h.Exports.ReportsXLSX(&buf, reports); err != nil {
		h.Logger.Printf("❌ Ошибка выгрузки отчетов: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to export reports")
		return
	}
	h.sendFile(c, fmt.Sprintf("reports_%s.xlsx", h.Now().In(h.Location).Format("20060102_150405")),
		services.ExportFormatXLSX, buf.Bytes())
}

// loadReport загружает отчет из параметра :id с проверкой области доступа
func (h *Handler) loadReport(c *gin.Context) (*models.Report, bool) {
	report, err := h.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondBackendError(c, err, "Report not found")
		return nil, false
	}
	if !middleware.GetScope(c).Allows(report.RegionID) {
		respondError(c, http.StatusNotFound, "Report not found")
		return nil, false
	}
	return report, true
}

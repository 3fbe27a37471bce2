package services

import (
	"fmt"
	"io"
	"log"
	"time"

	"fieldops_backend/dashboard"
	"fieldops_backend/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Форматы выгрузки
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
)

// Максимум строк таблицы в PDF
const pdfMaxRows = 50

// ExportService выгружает статистику и отчеты в Excel и PDF
type ExportService struct {
	location *time.Location
	logger   *log.Logger
}

// NewExportService создает новый экземпляр ExportService
func NewExportService(location *time.Location, logger *log.Logger) *ExportService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExportService{location: location, logger: logger}
}

// ContentType возвращает MIME-тип формата
func ContentType(format string) string {
	switch format {
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// table данные одного листа выгрузки
type table struct {
	sheet   string
	headers []string
	rows    [][]interface{}
}

// DashboardXLSX записывает статистику дашборда в книгу Excel
func (es *ExportService) DashboardXLSX(w io.Writer, stats dashboard.Stats) error {
	return es.writeWorkbook(w, es.dashboardTables(stats))
}

// ReportsXLSX записывает список отчетов в книгу Excel
func (es *ExportService) ReportsXLSX(w io.Writer, reports []models.Report) error {
	return es.writeWorkbook(w, []table{es.reportsTable(reports)})
}

// DashboardPDF записывает статистику дашборда в PDF
func (es *ExportService) DashboardPDF(w io.Writer, stats dashboard.Stats) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Dashboard summary")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 8, tr("Period: "+es.windowLabel(stats.Window)))
	pdf.Ln(10)

	for _, t := range es.dashboardTables(stats) {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 8, t.sheet)
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 8)
		width := 190.0 / float64(len(t.headers))
		for _, header := range t.headers {
			pdf.CellFormat(width, 7, tr(header), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for i, row := range t.rows {
			if i >= pdfMaxRows {
				pdf.Cell(40, 6, fmt.Sprintf("... %d more", len(t.rows)-pdfMaxRows))
				pdf.Ln(-1)
				break
			}
			for _, value := range row {
				pdf.CellFormat(width, 6, tr(truncate(fmt.Sprintf("%v", value), 40)), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("ошибка формирования PDF: %w", err)
	}
	return nil
}

func (es *ExportService) dashboardTables(stats dashboard.Stats) []table {
	summary := table{
		sheet:   "Summary",
		headers: []string{"Metric", "Value"},
		rows: [][]interface{}{
			{"Period", es.windowLabel(stats.Window)},
			{"Workers", stats.WorkerCount},
			{"Equipment", stats.EquipmentCount},
			{"Operators", stats.OperatorCount},
			{"Reports", stats.ReportCount},
			{"Incidents", stats.IncidentCount},
			{"Total fuel", stats.TotalFuel},
			{"Total worker salary", stats.TotalWorkerSalary},
		},
	}

	fuel := table{sheet: "Fuel", headers: []string{"Fuel type", "Amount"}}
	for _, b := range stats.FuelByType {
		fuel.rows = append(fuel.rows, []interface{}{b.Type, b.Amount})
	}

	incidents := table{sheet: "Incidents", headers: []string{"Incident type", "Count"}}
	for _, b := range stats.IncidentsByType {
		incidents.rows = append(incidents.rows, []interface{}{b.Type, b.Count})
	}

	recent := es.reportsTable(stats.RecentReports)
	recent.sheet = "Recent reports"

	return []table{summary, fuel, incidents, recent}
}

func (es *ExportService) reportsTable(reports []models.Report) table {
	t := table{
		sheet: "Reports",
		headers: []string{
			"Date", "Region", "Engineer", "Description",
			"Materials used", "Materials received", "Total fuel", "Total worker salary",
		},
	}
	for _, r := range reports {
		region := ""
		if r.RegionID != nil {
			region = *r.RegionID
		}
		t.rows = append(t.rows, []interface{}{
			r.Date.In(es.location).Format("2006-01-02"),
			region,
			r.EngineerID,
			r.Description,
			r.MaterialsUsed,
			r.MaterialsReceived,
			r.TotalFuel,
			r.TotalWorkerSalary,
		})
	}
	return t
}

func (es *ExportService) writeWorkbook(w io.Writer, tables []table) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			es.logger.Printf("⚠️ Failed to close Excel file: %v", err)
		}
	}()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.sheet); err != nil {
			return err
		}

		for col, header := range t.headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(t.sheet, cell, header); err != nil {
				return err
			}
		}
		for rowIdx, row := range t.rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				if err := f.SetCellValue(t.sheet, cell, value); err != nil {
					return err
				}
			}
		}

		if len(t.rows) > 0 {
			endCell, _ := excelize.CoordinatesToCellName(len(t.headers), len(t.rows)+1)
			if err := f.AutoFilter(t.sheet, "A1:"+endCell, []excelize.AutoFilterOptions{}); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ошибка записи Excel: %w", err)
	}
	return nil
}

func (es *ExportService) windowLabel(window dashboard.Window) string {
	format := func(t *time.Time, fallback string) string {
		if t == nil {
			return fallback
		}
		return t.In(es.location).Format("2006-01-02 15:04")
	}
	return format(window.From, "-") + " .. " + format(window.To, "-")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Package dashboard считает сводную статистику по отчетам, инцидентам,
// рабочим и технике для администраторов и инженеров.
package dashboard

import (
	"sort"

	"fieldops_backend/models"
)

// Размер списков последних отчетов и инцидентов
const RecentLimit = 5

// Filter параметры расчета статистики
type Filter struct {
	TimeFrame  TimeFrame  `json:"timeFrame"`
	DateRange  *DateRange `json:"dateRange,omitempty"`
	RegionID   string     `json:"regionId,omitempty"`
	EngineerID string     `json:"engineerId,omitempty"`

	// RegionIDs ограничение доступа: nil - без ограничений, пустой срез - ни одного региона
	RegionIDs []string `json:"regionIds,omitempty"`
}

// FuelBucket расход топлива по типу
type FuelBucket struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// IncidentBucket число инцидентов по типу
type IncidentBucket struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Stats сводная статистика дашборда
type Stats struct {
	WorkerCount    int `json:"workerCount"`
	EquipmentCount int `json:"equipmentCount"`
	OperatorCount  int `json:"operatorCount"`
	ReportCount    int `json:"reportCount"`
	IncidentCount  int `json:"incidentCount"`

	TotalFuel         float64 `json:"totalFuel"`
	TotalWorkerSalary float64 `json:"totalWorkerSalary"`

	FuelByType      []FuelBucket      `json:"fuelByType"`
	IncidentsByType []IncidentBucket  `json:"incidentsByType"`
	RecentReports   []models.Report   `json:"recentReports"`
	RecentIncidents []models.Incident `json:"recentIncidents"`

	Window Window `json:"window"`
}

// EmptyStats возвращает нулевую статистику с пустыми (не nil) списками
func EmptyStats() Stats {
	return Stats{
		FuelByType:      []FuelBucket{},
		IncidentsByType: []IncidentBucket{},
		RecentReports:   []models.Report{},
		RecentIncidents: []models.Incident{},
	}
}

func sortFuelBuckets(buckets []FuelBucket) {
	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i].Type, buckets[j].Type
		if (a == models.FuelTypeUnknown) != (b == models.FuelTypeUnknown) {
			return b == models.FuelTypeUnknown
		}
		return a < b
	})
}

func sortIncidentBuckets(buckets []IncidentBucket) {
	rank := make(map[string]int, len(models.IncidentTypes))
	for i, t := range models.IncidentTypes {
		rank[string(t)] = i
	}
	position := func(t string) int {
		if r, ok := rank[t]; ok {
			return r
		}
		if t == string(models.IncidentTypeUnknown) {
			return len(rank) + 1
		}
		return len(rank)
	}
	sort.Slice(buckets, func(i, j int) bool {
		pi, pj := position(buckets[i].Type), position(buckets[j].Type)
		if pi != pj {
			return pi < pj
		}
		return buckets[i].Type < buckets[j].Type
	})
}

package models

import "sort"

// Имена коллекций (таблиц), доступных через синхронизацию
const (
	CollectionRegions         = "regions"
	CollectionWorkers         = "workers"
	CollectionEquipment       = "equipment"
	CollectionReports         = "reports"
	CollectionReportWorkers   = "report_workers"
	CollectionReportEquipment = "report_equipment"
	CollectionIncidents       = "incidents"
)

// Dependent описывает строку-потомка, ссылающуюся на коллекцию
type Dependent struct {
	Collection string
	Column     string
}

// CollectionInfo описывает коллекцию и ее связи
type CollectionInfo struct {
	Name       string
	Model      interface{}
	HasRegion  bool        // есть колонка region_id
	AdminOnly  bool        // читается через общий CRUD только администратором
	Dependents []Dependent // запрещают удаление, пока существуют
}

// Collections реестр коллекций, доступных через API синхронизации.
// Пользователи сюда не входят: они не редактируются через общий CRUD
var Collections = map[string]CollectionInfo{
	CollectionRegions: {
		Name:      CollectionRegions,
		Model:     &Region{},
		HasRegion: false,
		Dependents: []Dependent{
			{Collection: CollectionWorkers, Column: "region_id"},
			{Collection: CollectionEquipment, Column: "region_id"},
			{Collection: CollectionReports, Column: "region_id"},
			{Collection: CollectionIncidents, Column: "region_id"},
			{Collection: "users", Column: "region_id"},
		},
	},
	CollectionWorkers: {
		Name:       CollectionWorkers,
		Model:      &Worker{},
		HasRegion:  true,
		Dependents: []Dependent{{Collection: CollectionReportWorkers, Column: "worker_id"}},
	},
	CollectionEquipment: {
		Name:       CollectionEquipment,
		Model:      &Equipment{},
		HasRegion:  true,
		Dependents: []Dependent{{Collection: CollectionReportEquipment, Column: "equipment_id"}},
	},
	CollectionReports: {
		Name:      CollectionReports,
		Model:     &Report{},
		HasRegion: true,
		Dependents: []Dependent{
			{Collection: CollectionReportWorkers, Column: "report_id"},
			{Collection: CollectionReportEquipment, Column: "report_id"},
		},
	},
	CollectionReportWorkers: {
		Name:      CollectionReportWorkers,
		Model:     &ReportWorker{},
		AdminOnly: true,
	},
	CollectionReportEquipment: {
		Name:      CollectionReportEquipment,
		Model:     &ReportEquipment{},
		AdminOnly: true,
	},
	CollectionIncidents: {
		Name:      CollectionIncidents,
		Model:     &Incident{},
		HasRegion: true,
	},
}

// LookupCollection возвращает описание коллекции по имени
func LookupCollection(name string) (CollectionInfo, bool) {
	info, ok := Collections[name]
	return info, ok
}

// AllModels возвращает модели в порядке, пригодном для миграции
func AllModels() []interface{} {
	return []interface{}{
		&Region{},
		&User{},
		&Worker{},
		&Equipment{},
		&Report{},
		&ReportWorker{},
		&ReportEquipment{},
		&Incident{},
	}
}

// CollectionNames возвращает имена коллекций в алфавитном порядке
func CollectionNames() []string {
	names := make([]string, 0, len(Collections))
	for name := range Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

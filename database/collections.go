package database

import (
	"fieldops_backend/backend"
	"fieldops_backend/models"
)

// CollectionSpecs переводит реестр коллекций моделей в описание для GormBackend
func CollectionSpecs() []backend.CollectionSpec {
	specs := make([]backend.CollectionSpec, 0, len(models.Collections))
	for _, name := range models.CollectionNames() {
		info := models.Collections[name]
		spec := backend.CollectionSpec{Name: name}
		for _, dep := range info.Dependents {
			spec.Dependents = append(spec.Dependents, backend.Dependent{Collection: dep.Collection, Column: dep.Column})
		}
		specs = append(specs, spec)
	}
	return specs
}

// NewMemoryBackend создает бэкенд в памяти с теми же ссылками, что и в БД
func NewMemoryBackend() *backend.Memory {
	mem := backend.NewMemory()
	for _, name := range models.CollectionNames() {
		for _, dep := range models.Collections[name].Dependents {
			mem.AddReference(name, dep.Collection, dep.Column)
		}
	}
	return mem
}

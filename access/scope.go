// Package access строит ограничения выборок по роли пользователя.
// Администратор видит все, инженер - только закрепленные за ним регионы и свой регион.
package access

import (
	"sort"

	"fieldops_backend/backend"
	"fieldops_backend/dashboard"
	"fieldops_backend/models"
)

// Scope область видимости пользователя
type Scope struct {
	UserID       string
	Unrestricted bool
	RegionIDs    []string
}

// ForUser строит область видимости для пользователя. nil-пользователь ничего не видит
func ForUser(user *models.User) Scope {
	if user == nil {
		return Scope{RegionIDs: []string{}}
	}
	if user.IsAdmin() {
		return Scope{UserID: user.ID, Unrestricted: true}
	}

	seen := make(map[string]struct{})
	regions := []string{}
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		regions = append(regions, id)
	}
	for _, id := range user.AssignedRegions {
		add(id)
	}
	if user.RegionID != nil {
		add(*user.RegionID)
	}
	sort.Strings(regions)

	return Scope{UserID: user.ID, RegionIDs: regions}
}

// Allows проверяет доступ к строке с регионом regionID
func (s Scope) Allows(regionID *string) bool {
	if s.Unrestricted {
		return true
	}
	if regionID == nil {
		return false
	}
	for _, id := range s.RegionIDs {
		if id == *regionID {
			return true
		}
	}
	return false
}

// RegionPredicates возвращает условия выборки по колонке региона
func (s Scope) RegionPredicates(column string) []backend.Predicate {
	if s.Unrestricted {
		return nil
	}
	return []backend.Predicate{backend.In(column, s.RegionIDs)}
}

// CanRead проверяет, доступна ли коллекция через общий CRUD.
// Строки связей отчетов не несут региона, инженер видит их только через отчет
func (s Scope) CanRead(collection string) bool {
	if s.Unrestricted {
		return true
	}
	info, ok := models.LookupCollection(collection)
	return ok && !info.AdminOnly
}

// CollectionPredicates возвращает ограничения для коллекции. Справочник регионов
// ограничивается по id, коллекции с регионом - по region_id
func (s Scope) CollectionPredicates(collection string) []backend.Predicate {
	if s.Unrestricted {
		return nil
	}
	if collection == models.CollectionRegions {
		return s.RegionPredicates("id")
	}
	if info, ok := models.LookupCollection(collection); ok && info.HasRegion {
		return s.RegionPredicates("region_id")
	}
	return nil
}

// DashboardFilter ограничивает фильтр дашборда регионами области
func (s Scope) DashboardFilter(filter dashboard.Filter) dashboard.Filter {
	if s.Unrestricted {
		return filter
	}
	filter.RegionIDs = append([]string{}, s.RegionIDs...)
	return filter
}

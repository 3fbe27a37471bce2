package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/middleware"
	"fieldops_backend/models"
	"fieldops_backend/realtime"

	"github.com/gin-gonic/gin"
)

// Item запись коллекции в соглашении приложения
type Item = map[string]interface{}

// ssePingInterval интервал служебных событий потока
const ssePingInterval = 25 * time.Second

// engineerWritable коллекции, которые инженер может изменять через общий CRUD
var engineerWritable = map[string]bool{
	models.CollectionIncidents: true,
}

// collectionFor создает экземпляр синхронизации коллекции с ограничениями пользователя
func (h *Handler) collectionFor(c *gin.Context, name string, onRefresh func([]Item)) (*realtime.Collection[Item], bool) {
	if _, ok := models.LookupCollection(name); !ok {
		respondError(c, http.StatusNotFound, "Unknown collection")
		return nil, false
	}
	scope := middleware.GetScope(c)
	if !scope.CanRead(name) {
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return nil, false
	}

	opts := realtime.Options[Item]{
		Scope:      scope.CollectionPredicates(name),
		OrderBy:    c.Query("orderBy"),
		Descending: c.Query("desc") == "true",
		OnRefresh:  onRefresh,
		Logger:     h.Logger,
		Metrics:    h.Metrics,
	}
	if field := c.Query("field"); field != "" {
		opts.Filter = &realtime.Filter{Field: field, Value: c.Query("value")}
	}
	return realtime.New[Item](h.Backend, name, opts), true
}

// ListCollection возвращает записи коллекции
func (h *Handler) ListCollection(c *gin.Context) {
	coll, ok := h.collectionFor(c, c.Param("collection"), nil)
	if !ok {
		return
	}

	items, err := coll.FetchAll(c.Request.Context())
	if err != nil {
		h.respondBackendError(c, err, "Failed to fetch collection")
		return
	}
	respondSuccess(c, http.StatusOK, items)
}

// CreateItem добавляет запись в коллекцию
func (h *Handler) CreateItem(c *gin.Context) {
	name := c.Param("collection")
	coll, ok := h.collectionFor(c, name, nil)
	if !ok || !h.checkWritable(c, name) {
		return
	}

	var fields realtime.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	delete(fields, "id")
	if !h.checkRegionField(c, name, fields, true) {
		return
	}
	if user := middleware.GetCurrentUser(c); !user.IsAdmin() && name == models.CollectionIncidents {
		fields["engineerId"] = user.ID
	}

	created, err := coll.Add(c.Request.Context(), fields)
	if err != nil {
		h.respondBackendError(c, err, "Failed to create item")
		return
	}
	h.invalidateStats(c)
	respondSuccess(c, http.StatusCreated, created)
}

// UpdateItem изменяет запись коллекции
func (h *Handler) UpdateItem(c *gin.Context) {
	name, id := c.Param("collection"), c.Param("id")
	coll, ok := h.collectionFor(c, name, nil)
	if !ok || !h.checkWritable(c, name) || !h.checkRowAccess(c, name, id) {
		return
	}

	var fields realtime.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	delete(fields, "id")
	if !h.checkRegionField(c, name, fields, false) {
		return
	}

	updated, err := coll.Update(c.Request.Context(), id, fields)
	if err != nil {
		h.respondBackendError(c, err, "Failed to update item")
		return
	}
	h.invalidateStats(c)
	respondSuccess(c, http.StatusOK, updated)
}

// DeleteItem удаляет запись коллекции
func (h *Handler) DeleteItem(c *gin.Context) {
	name, id := c.Param("collection"), c.Param("id")
	coll, ok := h.collectionFor(c, name, nil)
	if !ok || !h.checkWritable(c, name) || !h.checkRowAccess(c, name, id) {
		return
	}

	if err := coll.Remove(c.Request.Context(), id); err != nil {
		if backend.IsForeignKey(err) {
			respondError(c, http.StatusConflict, "Item is referenced by other records")
			return
		}
		h.respondBackendError(c, err, "Failed to delete item")
		return
	}
	h.invalidateStats(c)
	respondSuccess(c, http.StatusOK, gin.H{"id": id})
}

// StreamCollection отправляет снимки коллекции через Server-Sent Events.
// На каждое соединение открывается одна подписка, она закрывается при отключении клиента
func (h *Handler) StreamCollection(c *gin.Context) {
	updates := make(chan []Item, 1)
	coll, ok := h.collectionFor(c, c.Param("collection"), func(items []Item) {
		publishLatest(updates, items)
	})
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := coll.Start(ctx); err != nil {
		h.respondBackendError(c, err, "Failed to subscribe to collection")
		return
	}
	defer coll.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if err := coll.Err(); err != nil {
		c.SSEvent("error", gin.H{"error": "Failed to fetch collection"})
	}

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case items := <-updates:
			c.SSEvent("snapshot", items)
			return true
		case now := <-ticker.C:
			c.SSEvent("ping", strconv.FormatInt(now.Unix(), 10))
			return true
		}
	})
}

// publishLatest кладет в канал последний снимок, вытесняя неотправленный
func publishLatest(ch chan []Item, items []Item) {
	for {
		select {
		case ch <- items:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *Handler) checkWritable(c *gin.Context, name string) bool {
	user := middleware.GetCurrentUser(c)
	if user != nil && (user.IsAdmin() || engineerWritable[name]) {
		return true
	}
	respondError(c, http.StatusForbidden, "Insufficient permissions")
	return false
}

// checkRegionField проверяет, что регион записи доступен пользователю.
// required - регион обязателен (создание записи инженером)
func (h *Handler) checkRegionField(c *gin.Context, name string, fields realtime.Fields, required bool) bool {
	scope := middleware.GetScope(c)
	if scope.Unrestricted {
		return true
	}
	info, _ := models.LookupCollection(name)
	if !info.HasRegion {
		return true
	}

	raw, present := fields["regionId"]
	if !present && !required {
		return true
	}
	regionID, isString := raw.(string)
	if !isString || !scope.Allows(&regionID) {
		respondError(c, http.StatusForbidden, "Region is not available")
		return false
	}
	return true
}

// checkRowAccess проверяет, что существующая запись входит в область пользователя
func (h *Handler) checkRowAccess(c *gin.Context, name, id string) bool {
	scope := middleware.GetScope(c)
	if scope.Unrestricted {
		return true
	}

	where := append([]backend.Predicate{backend.Eq("id", id)}, scope.CollectionPredicates(name)...)
	rows, err := h.Backend.Select(c.Request.Context(), backend.Query{Collection: name, Where: where, Limit: 1})
	if err != nil {
		h.respondBackendError(c, err, "Failed to fetch item")
		return false
	}
	if len(rows) == 0 {
		respondError(c, http.StatusNotFound, "Item not found")
		return false
	}
	return true
}

package notification

import (
	"context"
	"log/slog"
	"net/http"

	"noticenter/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler exposes the dispatch engine over HTTP.
type Handler struct {
	center *Center
	store  NotificationStore
	queue  JobQueue
}

// NewHandler creates a notification handler. Store and queue may be nil;
// the matching endpoints then report the feature as unavailable.
func NewHandler(center *Center, store NotificationStore, queue JobQueue) *Handler {
	return &Handler{center: center, store: store, queue: queue}
}

// Dispatch handles POST /api/v1/dispatch.
// Sync dispatches return 200 with real outcomes; queued ones return 202.
func (h *Handler) Dispatch(c *gin.Context) {
	var intent Intent
	if err := c.ShouldBindJSON(&intent); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.center.Dispatch(c.Request.Context(), &intent)
	if err != nil {
		slog.Error("dispatch failed", "type", intent.Type, "error", err)
		common.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	common.Success(c, status, result)
}

// GetNotification handles GET /api/v1/notifications/:id.
func (h *Handler) GetNotification(c *gin.Context) {
	rec, err := h.loadRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, rec)
}

// ListNotifications handles GET /api/v1/notifications.
func (h *Handler) ListNotifications(c *gin.Context) {
	if h.store == nil {
		common.Error(c, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	records, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, &ListResponse{
		Notifications: records,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	})
}

// MarkRead handles POST /api/v1/notifications/:id/read. Idempotent.
func (h *Handler) MarkRead(c *gin.Context) {
	rec, err := h.loadRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	if err := h.store.MarkRead(c.Request.Context(), rec.ID); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"status": "read"})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id (soft delete).
func (h *Handler) DeleteNotification(c *gin.Context) {
	rec, err := h.loadRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	if err := h.store.SoftDelete(c.Request.Context(), rec.ID); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"status": "deleted"})
}

// QueueStats handles GET /api/v1/queues/stats, reporting every channel
// queue for operational health checks.
func (h *Handler) QueueStats(c *gin.Context) {
	if h.queue == nil {
		common.Error(c, http.StatusServiceUnavailable, "queue is not configured")
		return
	}

	stats := make(map[Channel]*QueueStats, len(Channels))
	for _, ch := range Channels {
		s, err := h.queue.Stats(c.Request.Context(), ch)
		if err != nil {
			slog.Error("queue stats failed", "channel", ch, "error", err)
			common.HandleError(c, err)
			return
		}
		stats[ch] = s
	}

	common.Success(c, http.StatusOK, stats)
}

func (h *Handler) loadRecord(ctx context.Context, id string) (*NotificationRecord, error) {
	if h.store == nil {
		return nil, common.NewValidationError("persistence is not configured")
	}
	rec, err := h.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.NewNotFoundError("notification", id)
	}
	return rec, nil
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/dispatch", h.Dispatch)
	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/notifications/:id", h.GetNotification)
	rg.POST("/notifications/:id/read", h.MarkRead)
	rg.DELETE("/notifications/:id", h.DeleteNotification)
	rg.GET("/queues/stats", h.QueueStats)
}

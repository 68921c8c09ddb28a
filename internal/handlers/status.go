package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusOK        = "ok"
	statusTriggered = "triggered"
	statusRefreshed = "refreshed"

	errRefreshCatalog = "failed to refresh device catalog"

	refreshTimeout = 15 * time.Second
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Node status
// @Description  Acquisition tasks, sync phase and local backlog.
// @Tags         status
// @Produce      json
// @Success      200  {object}  service.NodeStatus
// @Router       /api/v1/status [get]
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.GetStatus())
}

// @Summary      List catalog devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	devices := h.services.Catalog.All()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Refresh device catalog
// @Description  Fetches the device registry now. On failure the current catalog is kept.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, count"
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/catalog/refresh [post]
func (h *Handler) refreshCatalog(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	if err := h.services.Catalog.Refresh(ctx); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRefreshCatalog, "catalog_refresh_request_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": statusRefreshed,
		"count":  len(h.services.Catalog.All()),
	})
}

// @Summary      Trigger sync
// @Description  Requests an immediate sync cycle. Returns before the cycle runs.
// @Tags         sync
// @Produce      json
// @Success      202  {object}  map[string]string
// @Router       /api/v1/sync [post]
func (h *Handler) triggerSync(c *gin.Context) {
	h.services.Synchronizer.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": statusTriggered})
}

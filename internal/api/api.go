package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/celerix-dev/emap-store/pkg/schema"
	"github.com/celerix-dev/emap-store/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadBytes caps asset uploads at 1 GiB.
const DefaultMaxUploadBytes = 1 << 30

type Handler struct {
	Service sdk.WorkspaceService
	Log     *slog.Logger
	// MaxUploadBytes bounds asset upload bodies. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// AllowOrigins lists browser origins allowed to call the API. Empty
	// means loopback origins only.
	AllowOrigins []string
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", h.Health)

		apiGroup.GET("/workspaces", h.ListWorkspaces)
		apiGroup.POST("/workspaces", h.CreateWorkspace)
		apiGroup.GET("/workspaces/active", h.ActiveWorkspace)
		apiGroup.POST("/workspaces/:id/load", h.LoadWorkspace)
		apiGroup.DELETE("/workspaces/:id", h.DeleteWorkspace)

		apiGroup.GET("/kv/:key", h.GetValue)
		apiGroup.POST("/kv/:key", h.PutValue)

		apiGroup.GET("/assets", h.ListAssets)
		apiGroup.POST("/assets/import", h.ImportAsset)
		apiGroup.POST("/asset/:id", h.SaveAsset)
		apiGroup.GET("/asset/:id", h.GetAsset)
		apiGroup.DELETE("/asset/:id", h.DeleteAsset)

		apiGroup.GET("/fs", h.ListDirectory)

		apiGroup.GET("/settings/:key", h.GetSetting)
		apiGroup.PUT("/settings/:key", h.PutSetting)
		apiGroup.GET("/config/monitor", h.GetMonitorConfig)
		apiGroup.POST("/config/monitor", h.SaveMonitorConfig)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// fail writes err with the status its class maps to. noActive is the status
// used for ErrNoActiveWorkspace, which differs between reads and writes.
func (h *Handler) fail(c *gin.Context, err error, noActive int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schema.ErrNoActiveWorkspace):
		status = noActive
	case errors.Is(err, schema.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger().Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": sdk.ErrorCode(err)})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": sdk.CodeInvalidInput})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Workspaces ---

func (h *Handler) ListWorkspaces(c *gin.Context) {
	list, err := h.Service.ListWorkspaces(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateWorkspace(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}

	rec, err := h.Service.Create(c.Request.Context(), input.Name)
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ActiveWorkspace(c *gin.Context) {
	active, err := h.Service.Active(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *Handler) LoadWorkspace(c *gin.Context) {
	id := c.Param("id")
	if err := h.Service.Load(c.Request.Context(), id); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": id})
}

func (h *Handler) DeleteWorkspace(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Key-value ---

// GetValue returns the stored body verbatim. Values are written by the UI
// as JSON documents.
func (h *Handler) GetValue(c *gin.Context) {
	val, err := h.Service.GetValue(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(val))
}

func (h *Handler) PutValue(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.Service.PutValue(c.Request.Context(), c.Param("key"), string(body)); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// --- Assets ---

// ListAssets answers an empty list while no workspace is active.
func (h *Handler) ListAssets(c *gin.Context) {
	list, err := h.Service.ListAssets(c.Request.Context())
	if errors.Is(err, schema.ErrNoActiveWorkspace) {
		c.JSON(http.StatusOK, []schema.AssetRecord{})
		return
	}
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SaveAsset stores the request body as the blob for :id. The display name
// comes from X-Asset-Name and the MIME type from Content-Type, both taken
// as declared.
func (h *Handler) SaveAsset(c *gin.Context) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "code": sdk.CodeInvalidInput})
			return
		}
		h.badRequest(c, err)
		return
	}

	asset := schema.AssetRecord{
		ID:       c.Param("id"),
		Name:     c.GetHeader("X-Asset-Name"),
		MimeType: c.ContentType(),
	}
	if err := h.Service.PutAsset(c.Request.Context(), asset, body); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetAsset(c *gin.Context) {
	data, mimeType, err := h.Service.GetAssetBytes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, mimeType, data)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	if err := h.Service.DeleteAssetRecord(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ImportAsset(c *gin.Context) {
	var input struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}

	name, err := h.Service.ImportAsset(c.Request.Context(), input.Path)
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) ListDirectory(c *gin.Context) {
	entries, err := h.Service.ListDirectory(c.Request.Context(), c.Query("path"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// --- Settings ---

func (h *Handler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	val, ok, err := h.Service.Setting(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found", "code": sdk.CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": val})
}

func (h *Handler) PutSetting(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.Service.PutSetting(c.Request.Context(), c.Param("key"), string(body)); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetMonitorConfig returns the saved monitor config, or the zero config
// when none was saved yet.
func (h *Handler) GetMonitorConfig(c *gin.Context) {
	var cfg schema.MonitorConfig
	raw, ok, err := h.Service.Setting(c.Request.Context(), schema.SettingMonitorConfig)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			h.logger().Warn("stored monitor config is not valid JSON", "error", err)
		}
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) SaveMonitorConfig(c *gin.Context) {
	var cfg schema.MonitorConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		h.badRequest(c, err)
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	if err := h.Service.PutSetting(c.Request.Context(), schema.SettingMonitorConfig, string(raw)); err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/clipvault/clipd/internal/events"
	"github.com/clipvault/clipd/internal/history"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errMissingHistoryService = errors.New("history service dependency required")

const defaultListLimit = 200

// Dependencies wires the collaborator-facing API. The daemon binds it to
// loopback; rendering and retention collaborators consume history through
// these endpoints instead of touching the store directly.
type Dependencies struct {
	HistoryService *history.Service
	Dispatcher     *events.Dispatcher
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.HistoryService == nil {
		return nil, errMissingHistoryService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		historyService: deps.HistoryService,
		dispatcher:     deps.Dispatcher,
		logger:         logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/v1/items", handler.handleListItems)
	router.GET("/v1/items/:id", handler.handleGetItem)
	router.DELETE("/v1/items/:id", handler.handleDeleteItem)
	router.POST("/v1/items/:id/favorite", handler.handleSetFavorite)
	router.GET("/v1/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	historyService *history.Service
	dispatcher     *events.Dispatcher
	logger         *zap.Logger
}

type itemPayload struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	RichPayload      string `json:"rich_payload,omitempty"`
	HasImage         bool   `json:"has_image"`
	ContentType      string `json:"content_type"`
	SourceAppName    string `json:"source_app_name"`
	SourceAppBundle  string `json:"source_app_bundle_id"`
	ThemeColor       string `json:"theme_color,omitempty"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	IsFavorite       bool   `json:"is_favorite"`
	IsLocked         bool   `json:"is_locked"`
	ContentHash      string `json:"content_hash"`
	LinkTitle        string `json:"link_title,omitempty"`
	LinkFavicon      string `json:"link_favicon,omitempty"`
	FileSizeBytes    int64  `json:"file_size_bytes,omitempty"`
}

func toItemPayload(item history.Item) itemPayload {
	return itemPayload{
		ID:               item.ID,
		Content:          item.Content,
		RichPayload:      base64.StdEncoding.EncodeToString(item.RichPayload),
		HasImage:         len(item.ImageBytes) > 0,
		ContentType:      string(item.ContentType),
		SourceAppName:    item.SourceAppName,
		SourceAppBundle:  item.SourceAppBundle,
		ThemeColor:       item.ThemeColor,
		CreatedAtSeconds: item.CreatedAtSeconds,
		IsFavorite:       item.IsFavorite,
		IsLocked:         item.IsLocked,
		ContentHash:      item.ContentHash,
		LinkTitle:        item.LinkTitle,
		LinkFavicon:      item.LinkFavicon,
		FileSizeBytes:    item.FileSizeBytes,
	}
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListItems(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	items, err := h.historyService.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payloads := make([]itemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, toItemPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": payloads})
}

func (h *httpHandler) handleGetItem(c *gin.Context) {
	item, err := h.historyService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if history.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to load item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}
	c.JSON(http.StatusOK, toItemPayload(item))
}

func (h *httpHandler) handleDeleteItem(c *gin.Context) {
	if err := h.historyService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("failed to delete item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type favoritePayload struct {
	Favorite bool `json:"favorite"`
}

func (h *httpHandler) handleSetFavorite(c *gin.Context) {
	var request favoritePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.historyService.SetFavorite(c.Request.Context(), c.Param("id"), request.Favorite); err != nil {
		h.logger.Error("failed to set favorite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "favorite_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type eventPayload struct {
	Kind      string   `json:"kind"`
	ItemID    string   `json:"item_id"`
	Changed   []string `json:"changed,omitempty"`
	Timestamp int64    `json:"timestamp_s"`
}

// handleEvents bridges the dispatcher to an SSE stream so UI collaborators
// can follow history changes without polling.
func (h *httpHandler) handleEvents(c *gin.Context) {
	if h.dispatcher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "events_unavailable"})
		return
	}

	stream, cancel := h.dispatcher.Subscribe(c.Request.Context())
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(event.Kind, eventPayload{
				Kind:      event.Kind,
				ItemID:    event.ItemID,
				Changed:   event.Changed,
				Timestamp: event.Timestamp.Unix(),
			})
			c.Writer.Flush()
		}
	}
}

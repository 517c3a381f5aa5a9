package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams observer channels to proctors over SSE.
type MonitorHandler struct {
	rdb              *redis.Client
	analyticsService *service.AnalyticsService
	log              zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	analyticsService *service.AnalyticsService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:              rdb,
		analyticsService: analyticsService,
		log:              log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/proctor/exams/:id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// The snapshot doubles as the existence check, before any SSE header is sent.
	counts, err := h.analyticsService.LiveCounts(reqCtx, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	setSSEHeaders(c)
	c.SSEvent("message", gin.H{"type": "snapshot", "data": counts})
	c.Writer.Flush()

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	h.log.Info().Str("exam_id", examID.String()).Msg("Proctor attached to live monitor SSE")
	h.stream(c, channelName, func() {
		h.sendRefresh(c, reqCtx, examID)
	})
	h.log.Info().Str("exam_id", examID.String()).Msg("Proctor disconnected from live monitor SSE")
}

// MonitorGlobalSSE godoc
// GET /api/v1/proctor/monitor
// Streams suspensions, resumes and manual closes across all exams.
func (h *MonitorHandler) MonitorGlobalSSE(c *gin.Context) {
	setSSEHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	h.stream(c, config.CacheKey.GlobalMonitorChannel(), nil)
}

// stream forwards channel messages until the client disconnects. refresh,
// when set, runs periodically once at least one event has been seen.
func (h *MonitorHandler) stream(c *gin.Context, channelName string, refresh func()) {
	reqCtx := c.Request.Context()

	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes on an exam nobody has touched yet
	active := false

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON events, forward as-is
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if refresh == nil || !active {
				continue
			}
			refresh()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendRefresh recomputes the live counts and sends a refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	counts, err := h.analyticsService.LiveCounts(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to refresh live counts")
		return
	}

	c.SSEvent("message", gin.H{"type": "refresh", "data": counts})
	c.Writer.Flush()
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student exam stream.
type WSHandler struct {
	rdb              *redis.Client
	sessionService   *service.ExamSessionService
	violationService *service.ViolationService
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. rdb may be nil, in which case observer
// events are not relayed to the student.
func NewWSHandler(
	rdb *redis.Client,
	sessionService *service.ExamSessionService,
	violationService *service.ViolationService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		rdb:              rdb,
		sessionService:   sessionService,
		violationService: violationService,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Carries progress syncs, violation reports and the final submission over one
// connection, and relays observer events about this student.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	// A session must exist before streaming; Start is an HTTP call.
	if _, err := h.sessionService.GetSessionState(c.Request.Context(), p.UserID, examID); err != nil {
		failFromError(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	studentID := p.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if h.rdb != nil {
		go h.relay(ctx, conn, wsLog, examID, studentID)
	}

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionProgress:
			h.handleProgress(ctx, conn, studentID, examID, msg.Data)
		case ws.ActionViolation:
			h.handleViolation(ctx, conn, studentID, examID, msg.Data)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, studentID, examID, msg.Data)
		case ws.ActionPing:
			conn.WriteJSON(ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleProgress(ctx context.Context, conn *ws.Conn, studentID int, examID uuid.UUID, data json.RawMessage) {
	var req model.ProgressRequest
	if !decodeWS(conn, data, &req) {
		return
	}

	session, err := h.sessionService.UpdateProgress(ctx, studentID, examID, &req)
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}
	conn.WriteJSON(ws.EventSuccess, map[string]interface{}{
		"status":       "saved",
		"last_sync_at": session.LastSyncAt,
	})
}

func (h *WSHandler) handleViolation(ctx context.Context, conn *ws.Conn, studentID int, examID uuid.UUID, data json.RawMessage) {
	var req model.RecordViolationRequest
	if !decodeWS(conn, data, &req) {
		return
	}

	out, err := h.violationService.Record(ctx, studentID, examID, &req)
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}
	if out.Suspended {
		conn.WriteJSON(ws.EventSuspended, out)
		return
	}
	conn.WriteJSON(ws.EventSuccess, out)
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, studentID int, examID uuid.UUID, data json.RawMessage) {
	var req model.SubmitRequest
	if len(data) > 0 && !decodeWS(conn, data, &req) {
		return
	}

	result, err := h.sessionService.Submit(ctx, studentID, examID, req.Answers)
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}

	wsLog.Info().
		Int("score", result.Score).
		Int("total", result.TotalPoints).
		Msg("Exam submitted and graded")

	conn.WriteJSON(ws.EventGraded, map[string]interface{}{
		"status": "completed",
		"result": result,
	})
}

// relay forwards observer events concerning this student or the whole exam
// until ctx is cancelled.
func (h *WSHandler) relay(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, examID uuid.UUID, studentID int) {
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, ok := relevantEvent([]byte(msg.Payload), studentID)
			if !ok {
				continue
			}
			if err := conn.WriteJSON(ws.EventNotify, event); err != nil {
				wsLog.Debug().Err(err).Msg("Relay write failed")
				return
			}
		}
	}
}

// relayedEvent is the subset of an observer event the student stream needs.
type relayedEvent struct {
	Type model.EventName `json:"type"`
	Data json.RawMessage `json:"data"`
}

// relevantEvent decodes an observer event and reports whether it concerns
// studentID: exam-wide events always do, session events only for the owner.
func relevantEvent(payload []byte, studentID int) (*relayedEvent, bool) {
	var ev relayedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, false
	}

	switch ev.Type {
	case model.EventExamClosedManually, model.EventExamFinalized:
		return &ev, true
	case model.EventSessionSubmitted, model.EventSessionSuspended, model.EventSessionUnsuspended:
		var target struct {
			StudentID int `json:"student_id"`
		}
		if err := json.Unmarshal(ev.Data, &target); err != nil {
			return nil, false
		}
		return &ev, target.StudentID == studentID
	default:
		return nil, false
	}
}

func (h *WSHandler) writeServiceError(conn *ws.Conn, err error) {
	_, code, ok := classify(err)
	if !ok {
		h.log.Error().Err(err).Msg("Unhandled service error on stream")
	}
	conn.WriteError(string(code), response.GetMessage(code))
}

// decodeWS unmarshals and validates a message payload, replying with an error
// event on failure.
func decodeWS(conn *ws.Conn, data json.RawMessage, dst interface{}) bool {
	if len(data) == 0 {
		conn.WriteError(string(response.ErrInvalidPayload), "data is required")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		conn.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return false
	}
	if fields := validator.Struct(dst); fields != nil {
		conn.WriteError(string(response.ErrValidation), response.GetMessage(response.ErrValidation))
		return false
	}
	return true
}

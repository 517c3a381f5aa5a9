package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionProgress  Action = "progress"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload is every client message. Data is decoded according to
// Action: model.ProgressRequest, model.RecordViolationRequest or
// model.SubmitRequest.
type RequestPayload struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSuccess   Event = "success"
	EventGraded    Event = "graded"
	EventSuspended Event = "suspended"
	EventPong      Event = "pong"
	// EventNotify relays an observer-channel event concerning this student
	// or the whole exam (resume, manual close, finalization).
	EventNotify Event = "notify"
)

// ResponsePayload is every server message.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
}

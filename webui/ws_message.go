package webui

import "time"

// Message types pushed to websocket clients.
const (
	MessageTypeInitial      = "initial"
	MessageTypeModelState   = "model_state"
	MessageTypeRunStarted   = "run_started"
	MessageTypeProgress     = "progress"
	MessageTypeRunCompleted = "run_completed"
	MessageTypeRunFailed    = "run_failed"
	MessageTypeAborted      = "aborted"
)

// WSMessage is the envelope of every websocket message.
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{Type: msgType, Timestamp: time.Now().UTC(), Data: data}
}

// ModelStateData describes the loaded model.
type ModelStateData struct {
	Name    string `json:"name"`
	Runtime string `json:"runtime,omitempty"`
	Scale   int    `json:"scale,omitempty"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// RunStartedData announces an upscale.
type RunStartedData struct {
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	PatchSize int    `json:"patch_size,omitempty"`
	Padding   int    `json:"padding,omitempty"`
}

// ProgressData reports one finished tile. Preview is a base64 PNG of the
// tile and is only set when the client asked for previews.
type ProgressData struct {
	RunID   string  `json:"run_id"`
	Percent float64 `json:"percent"`
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
	Preview string  `json:"preview,omitempty"`
}

// RunFinishedData closes a run. Error is set for failed and cancelled runs.
type RunFinishedData struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	OutputWidth  int    `json:"output_width,omitempty"`
	OutputHeight int    `json:"output_height,omitempty"`
	Tiles        int    `json:"tiles,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// InitialData is sent to each client right after it connects.
type InitialData struct {
	Model  ModelStateData `json:"model"`
	Recent []WSMessage    `json:"recent"`
}

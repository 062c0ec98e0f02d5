package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/xgrab/internal/display"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetMonitors CommandType = "GET_MONITORS"
	CommandCapture     CommandType = "CAPTURE"
)

// Request represents an IPC request from client to server
type Request struct {
	ID      string          `json:"id,omitempty"`
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	ID     string          `json:"id,omitempty"`
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Display       string `json:"display"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ShmEnabled    bool   `json:"shm_enabled"`
	Captures      int64  `json:"captures"`
	Failures      int64  `json:"failures"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DaemonRunning bool   `json:"daemon_running"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []display.Monitor `json:"monitors"`
}

// CapturePayload selects what CAPTURE grabs. Zero fields fall back to the
// daemon's configuration.
type CapturePayload struct {
	Mode      string        `json:"mode,omitempty"`
	Monitor   string        `json:"monitor,omitempty"`
	Area      *display.Rect `json:"area,omitempty"`
	Format    string        `json:"format,omitempty"`
	Quality   int           `json:"quality,omitempty"`
	MaxWidth  int           `json:"max_width,omitempty"`
	MaxHeight int           `json:"max_height,omitempty"`
}

// CaptureData is the encoded image returned by CAPTURE. Image is base64 on
// the wire.
type CaptureData struct {
	Format   string       `json:"format"`
	MIMEType string       `json:"mime_type"`
	Area     display.Rect `json:"area"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Image    []byte       `json:"image"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

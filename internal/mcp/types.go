package mcp

import "github.com/1broseidon/xgrab/internal/display"

// CaptureScreenInput is the input for the capture_screen tool.
type CaptureScreenInput struct {
	Mode      string `json:"mode,omitempty" jsonschema:"What to capture: full, monitor, area or window (default: from config)"`
	Monitor   string `json:"monitor,omitempty" jsonschema:"Monitor name for mode=monitor, e.g. DP-1 (default: primary monitor)"`
	X         int    `json:"x,omitempty" jsonschema:"Left edge in root coordinates for mode=area"`
	Y         int    `json:"y,omitempty" jsonschema:"Top edge in root coordinates for mode=area"`
	Width     int    `json:"width,omitempty" jsonschema:"Width in pixels for mode=area"`
	Height    int    `json:"height,omitempty" jsonschema:"Height in pixels for mode=area"`
	Format    string `json:"format,omitempty" jsonschema:"Image format: png or jpeg (default: png)"`
	Quality   int    `json:"quality,omitempty" jsonschema:"JPEG quality 1-100 (default: 90)"`
	MaxWidth  int    `json:"max_width,omitempty" jsonschema:"Downscale so the image is at most this wide (default: 1920)"`
	MaxHeight int    `json:"max_height,omitempty" jsonschema:"Downscale so the image is at most this tall"`
}

// CaptureScreenOutput is the output for the capture_screen tool. The image
// itself is returned as image content.
type CaptureScreenOutput struct {
	Format string       `json:"format"`
	Area   display.Rect `json:"area"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Bytes  int          `json:"bytes"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []display.Monitor `json:"monitors"`
}

// PointerPositionInput is the input for the pointer_position tool.
type PointerPositionInput struct{}

// PointerPositionOutput is the output for the pointer_position tool.
type PointerPositionOutput struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Monitor string `json:"monitor,omitempty"`
	LocalX  int    `json:"local_x,omitempty"`
	LocalY  int    `json:"local_y,omitempty"`
}

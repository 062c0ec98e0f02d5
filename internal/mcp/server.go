package mcp

import (
	"context"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
)

const (
	ServerName    = "xgrab"
	ServerVersion = "0.1.0"

	// DefaultMaxWidth keeps screenshots within what clients display well.
	DefaultMaxWidth = 1920
)

// Server exposes screen capture as MCP tools. Each call opens its own
// display connection.
type Server struct {
	mcpServer *mcpsdk.Server
	config    *config.Config
	dial      display.Dialer
	connOpts  []display.Option
	logger    *slog.Logger

	// mu serializes display access across concurrent tool calls.
	mu sync.Mutex
}

// NewServer creates an MCP server that reaches the display through dial.
func NewServer(cfg *config.Config, dial display.Dialer, logger *slog.Logger, opts ...display.Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:   cfg,
		dial:     dial,
		connOpts: append([]display.Option{display.WithLogger(logger)}, opts...),
		logger:   logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "capture_screen",
		Description: "Capture the X11 screen, one monitor, a rectangle or the focused window and return it as an image. Large captures are downscaled to max_width (default 1920).",
	}, s.handleCaptureScreen)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List connected monitors with their names and positions in root coordinates. Requires the RandR extension.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pointer_position",
		Description: "Report the mouse pointer position in root coordinates and relative to the monitor it is on.",
	}, s.handlePointerPosition)
}

// withConnection runs fn on a fresh connection under the server lock.
func (s *Server) withConnection(fn func(*display.Connection) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := display.Open(s.config.Display, s.dial, s.connOpts...)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

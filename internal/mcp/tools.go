package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
	"github.com/1broseidon/xgrab/internal/grab"
)

func (s *Server) handleCaptureScreen(_ context.Context, _ *mcpsdk.CallToolRequest, args CaptureScreenInput) (*mcpsdk.CallToolResult, CaptureScreenOutput, error) {
	target, opts, err := s.captureRequest(args)
	if err != nil {
		return nil, CaptureScreenOutput{}, err
	}

	var img *grab.Image
	err = s.withConnection(func(conn *display.Connection) error {
		var err error
		img, err = grab.New(conn, false, s.logger).Grab(target, opts)
		return err
	})
	if err != nil {
		return nil, CaptureScreenOutput{}, fmt.Errorf("capture failed: %w", err)
	}

	out := CaptureScreenOutput{
		Format: string(img.Format),
		Area:   img.Rect,
		Width:  img.Width,
		Height: img.Height,
		Bytes:  len(img.Data),
	}
	s.logger.Debug("mcp capture", "mode", target.Mode, "width", out.Width, "height", out.Height, "bytes", out.Bytes)

	result := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.ImageContent{Data: img.Data, MIMEType: img.Format.MIMEType()},
			&mcpsdk.TextContent{Text: fmt.Sprintf("Captured %dx%d at %d,%d (%dx%d %s, %d bytes)",
				img.Rect.Width, img.Rect.Height, img.Rect.X, img.Rect.Y, out.Width, out.Height, out.Format, out.Bytes)},
		},
	}
	return result, out, nil
}

func (s *Server) captureRequest(args CaptureScreenInput) (grab.Target, encode.Options, error) {
	target := grab.TargetFromConfig(s.config.Capture)
	if args.Mode != "" {
		target = grab.Target{Mode: config.CaptureMode(args.Mode)}
	}
	switch target.Mode {
	case config.CaptureModeFull, config.CaptureModeWindow:
	case config.CaptureModeMonitor:
		if args.Monitor != "" {
			target.Monitor = args.Monitor
		}
	case config.CaptureModeArea:
		if args.Width > 0 || args.Height > 0 {
			target.Area = display.Rect{X: args.X, Y: args.Y, Width: args.Width, Height: args.Height}
		}
		if target.Area.Empty() {
			return grab.Target{}, encode.Options{}, errors.New("mode=area needs width and height")
		}
	default:
		return grab.Target{}, encode.Options{}, fmt.Errorf("unknown mode %q (valid: full, monitor, area, window)", args.Mode)
	}

	opts := s.config.EncodeOptions()
	if args.Format != "" {
		f, err := encode.ParseFormat(args.Format)
		if err != nil {
			return grab.Target{}, encode.Options{}, err
		}
		opts.Format = f
	}
	if opts.Format != encode.FormatPNG && opts.Format != encode.FormatJPEG {
		// MCP image content is limited to formats clients render.
		return grab.Target{}, encode.Options{}, fmt.Errorf("format %s is not supported here (valid: png, jpeg)", opts.Format)
	}
	if args.Quality > 0 {
		opts.Quality = args.Quality
	}
	switch {
	case args.MaxWidth > 0:
		opts.MaxWidth = args.MaxWidth
	case opts.MaxWidth == 0:
		opts.MaxWidth = DefaultMaxWidth
	}
	if args.MaxHeight > 0 {
		opts.MaxHeight = args.MaxHeight
	}
	return target, opts, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	var out ListMonitorsOutput
	err := s.withConnection(func(conn *display.Connection) error {
		monitors, err := conn.Monitors()
		out.Monitors = monitors
		return err
	})
	if err != nil {
		return nil, ListMonitorsOutput{}, fmt.Errorf("list monitors: %w", err)
	}
	return nil, out, nil
}

func (s *Server) handlePointerPosition(_ context.Context, _ *mcpsdk.CallToolRequest, _ PointerPositionInput) (*mcpsdk.CallToolResult, PointerPositionOutput, error) {
	var out PointerPositionOutput
	err := s.withConnection(func(conn *display.Connection) error {
		x, y, err := conn.PointerPosition()
		if err != nil {
			return err
		}
		out.X, out.Y = x, y

		monitors, err := conn.Monitors()
		if err != nil {
			// Root coordinates are still useful without RandR.
			s.logger.Debug("pointer monitor lookup skipped", "error", err)
			return nil
		}
		for _, m := range monitors {
			if lx, ly, ok := m.MouseToLocal(x, y); ok {
				out.Monitor, out.LocalX, out.LocalY = m.Name, lx, ly
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, PointerPositionOutput{}, fmt.Errorf("query pointer: %w", err)
	}
	return nil, out, nil
}

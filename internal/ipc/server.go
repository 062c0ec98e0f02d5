package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// requestTimeout bounds how long a client may take to send its request.
const requestTimeout = 5 * time.Second

// Handler serves the commands a Server receives. Calls may arrive from
// several connections at once.
type Handler interface {
	Status() StatusData
	Monitors() (*MonitorsData, error)
	Capture(p CapturePayload) (*CaptureData, error)
	Reload() error
}

// Server answers one newline-terminated JSON request per connection on a
// unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    Handler
	logger     *slog.Logger
	commands   map[CommandType]func(json.RawMessage) (any, error)
	wg         sync.WaitGroup
}

// NewServer prepares a server for socketPath. A stale socket file is removed.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	os.Remove(socketPath)

	s := &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
	}
	s.commands = map[CommandType]func(json.RawMessage) (any, error){
		CommandGetStatus: func(json.RawMessage) (any, error) {
			return handler.Status(), nil
		},
		CommandGetMonitors: func(json.RawMessage) (any, error) {
			data, err := handler.Monitors()
			if err != nil {
				return nil, fmt.Errorf("failed to get monitors: %w", err)
			}
			return data, nil
		},
		CommandCapture: s.capture,
		CommandReload: func(json.RawMessage) (any, error) {
			if err := handler.Reload(); err != nil {
				return nil, fmt.Errorf("failed to reload config: %w", err)
			}
			logger.Info("config reloaded")
			return nil, nil
		},
	}
	return s
}

// Start listens on the socket (mode 0600) and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = listener
	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.respond(conn)
		}()
	}
}

func (s *Server) respond(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	var resp *Response
	req, err := ParseRequest(line)
	if err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	} else {
		resp = s.dispatch(req)
		resp.ID = req.ID
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("failed to send response", "id", resp.ID, "error", err)
	}
}

func (s *Server) dispatch(req *Request) *Response {
	s.logger.Debug("IPC request", "id", req.ID, "command", req.Command)
	run, ok := s.commands[req.Command]
	if !ok {
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
	data, err := run(req.Payload)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) capture(payload json.RawMessage) (any, error) {
	var p CapturePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid capture payload: %w", err)
		}
	}
	data, err := s.handler.Capture(p)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	return data, nil
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

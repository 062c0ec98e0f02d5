package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/xgrab/internal/runtimepath"
)

// maxResponseBytes bounds a single response line; a 4K capture as PNG fits
// comfortably after base64.
const maxResponseBytes = 256 << 20

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient uses the default socket under the runtime dir.
func NewClient() *Client {
	// An unresolvable path surfaces as a dial error on first use.
	socketPath, _ := runtimepath.SocketPath()
	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket creates a client for an explicit socket path.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// roundTrip sends one request on a fresh connection and returns the OK
// response. Each request carries a fresh id that the reply must echo.
func (c *Client) roundTrip(cmd CommandType, payload any) (*Response, error) {
	req := Request{ID: uuid.NewString(), Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = raw
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBytes)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = fmt.Errorf("connection closed")
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.ID != "" && resp.ID != req.ID {
		return nil, fmt.Errorf("response id %s does not match request %s", resp.ID, req.ID)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// call runs cmd and decodes the response data into a T.
func call[T any](c *Client, cmd CommandType, payload any) (*T, error) {
	resp, err := c.roundTrip(cmd, payload)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return &out, nil
}

// Reload asks the daemon to re-read its configuration.
func (c *Client) Reload() error {
	_, err := c.roundTrip(CommandReload, nil)
	return err
}

// GetStatus retrieves daemon status.
func (c *Client) GetStatus() (*StatusData, error) {
	return call[StatusData](c, CommandGetStatus, nil)
}

// GetMonitors retrieves the daemon's monitor layout.
func (c *Client) GetMonitors() (*MonitorsData, error) {
	return call[MonitorsData](c, CommandGetMonitors, nil)
}

// Capture asks the daemon for an encoded capture.
func (c *Client) Capture(p CapturePayload) (*CaptureData, error) {
	return call[CaptureData](c, CommandCapture, p)
}

// Ping checks if the daemon is responding.
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

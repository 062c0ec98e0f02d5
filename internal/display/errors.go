package display

import "errors"

var (
	// ErrInvalidIdentifier is returned when a display identifier cannot be
	// sent to the server (it contains a NUL byte).
	ErrInvalidIdentifier = errors.New("invalid display identifier")
	// ErrConnectionFailed is returned when the display server is unreachable
	// or refuses the connection.
	ErrConnectionFailed = errors.New("display connection failed")
	// ErrCaptureFailed covers every image-fetch failure. The server does not
	// tell bad geometry, permission denial and resource exhaustion apart.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrExtensionNotAvailable is returned when MIT-SHM or RandR is missing.
	ErrExtensionNotAvailable = errors.New("extension not available")
	// ErrShmInitFailed is returned when the OS shared-memory segment could
	// not be created or mapped.
	ErrShmInitFailed = errors.New("shared memory init failed")
	// ErrShmAttachFailed is returned when the server refused the segment.
	ErrShmAttachFailed = errors.New("shared memory attach failed")
	// ErrFrameReadOnly is returned by AsBytesMutable on captured frames.
	ErrFrameReadOnly = errors.New("frame is read-only")
	// ErrShortBuffer is returned when caller memory is smaller than w*h*4.
	ErrShortBuffer = errors.New("buffer too small for frame geometry")
	// ErrInvalidArea is returned for a session area with a zero dimension.
	ErrInvalidArea = errors.New("capture area must have positive width and height")
	// ErrClosed is returned when a Connection or session is used after Close.
	ErrClosed = errors.New("connection closed")
)

// Package privileged implements the channel between the unprivileged CLI and
// the root helper: a Unix socket carrying length-prefixed JSON frames, with
// many requests multiplexed over one connection by request ID.
package privileged

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single encoded request or response
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Op identifies a helper operation
type Op string

const (
	OpDeleteFile        Op = "delete_file"
	OpSecureDelete      Op = "secure_delete"
	OpRepairPermissions Op = "repair_permissions"
	OpGetVersion        Op = "get_version"
	OpRunMaintenance    Op = "run_maintenance"
)

// Request is one call to the helper. Only the fields relevant to Op are set.
type Request struct {
	ID      uint64   `json:"id"`
	Op      Op       `json:"op"`
	Path    string   `json:"path,omitempty"`
	Passes  int      `json:"passes,omitempty"`
	Scripts []string `json:"scripts,omitempty"`
}

// Response completes the request with the same ID
type Response struct {
	ID      uint64 `json:"id"`
	OK      bool   `json:"ok"`
	Result  string `json:"result,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteFrame encodes v as JSON behind a 4-byte big-endian length prefix.
// Header and body go out in a single Write so concurrent writers only need
// to serialize calls, not frames.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame and decodes it into v
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

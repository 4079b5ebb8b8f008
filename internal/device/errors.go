package device

import (
	"errors"
	"os/exec"
	"strings"
)

var (
	// ErrConnectionLost means the device dropped off the bus mid-operation.
	// Work performed against the device since the last committed batch must
	// be treated as unverified.
	ErrConnectionLost = errors.New("device connection lost")
	// ErrNoDevice means no recognized device is currently attached.
	ErrNoDevice = errors.New("no device attached")
	// ErrBridgeUnavailable means the bridge binary could not be executed at
	// all, typically because it is not installed or not on PATH.
	ErrBridgeUnavailable = errors.New("device bridge unavailable")
)

// connectionLossMarkers are substrings the bridge emits when the device
// disappears during an operation.
var connectionLossMarkers = []string{
	"device disconnected",
	"connection reset",
	"connection refused",
	"mux error",
	"no such device",
	"device not found",
	"broken pipe",
}

// classifyBridgeError maps a bridge invocation failure onto the error
// taxonomy. Unrecognized failures pass through unchanged.
func classifyBridgeError(err error, stderr string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ErrBridgeUnavailable
	}
	lower := strings.ToLower(stderr)
	for _, marker := range connectionLossMarkers {
		if strings.Contains(lower, marker) {
			return ErrConnectionLost
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The bridge reserves exit code 4 for transport loss.
		if exitErr.ExitCode() == 4 {
			return ErrConnectionLost
		}
	}
	return err
}

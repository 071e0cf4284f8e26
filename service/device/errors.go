package device

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Return code sentinels.
const (
	ReturnCodeOK           = 0
	ReturnCodePrecondition = -1
	ReturnCodeUnknown      = -100
	ReturnCodeTimeout      = -101
	ReturnCodeAuth         = -102
	ReturnCodeTransport    = -103
)

var (
	// ErrTimeout marks connection, authentication or command timeouts.
	ErrTimeout = errors.New("device timeout")
	// ErrAuthentication marks rejected credentials.
	ErrAuthentication = errors.New("device authentication failed")
	// ErrTransport marks SSH session level failures.
	ErrTransport = errors.New("device transport failure")
)

// classify maps a session error to a sentinel return code and message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReturnCodeTimeout, fmt.Sprintf("timeout connecting to or executing on FortiGate: %v", err)
	case errors.Is(err, ErrAuthentication):
		return ReturnCodeAuth, fmt.Sprintf("authentication with FortiGate failed (wrong username/password?): %v", err)
	case errors.Is(err, ErrTransport):
		return ReturnCodeTransport, fmt.Sprintf("SSH error connecting to FortiGate (check SSH port and firewall): %v", err)
	}
	return ReturnCodeUnknown, fmt.Sprintf("unexpected error executing FortiGate commands: %v", err)
}

func failure(err error) *Result {
	code, message := classify(err)
	log.Printf("%s", message)
	return &Result{ReturnCode: code, Error: message}
}

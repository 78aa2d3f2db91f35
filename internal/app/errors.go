package app

import (
	"botconsole/clients/dashboardapi"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrAttemptPending rejects a mode request while another attempt is in flight.
	ErrAttemptPending = errors.New("trading mode attempt already pending")
	// ErrNoPendingPrompt is returned by Respond when nothing awaits an answer.
	ErrNoPendingPrompt = errors.New("no confirmation pending")
	// ErrUnknownSection rejects activation of a section outside the enumeration.
	ErrUnknownSection = errors.New("unknown section")
	// ErrNoAccount means the backend returned no account to load data for.
	ErrNoAccount = errors.New("account id not found")
	// ErrInvalidMode rejects a switch to a mode outside sandbox/production.
	ErrInvalidMode = errors.New("invalid trading mode")
)

// userMessage renders err as notification text.
func userMessage(err error) string {
	var (
		statusErr    *dashboardapi.StatusError
		decodeErr    *dashboardapi.DecodeError
		transportErr *dashboardapi.TransportError
	)
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Message != "" {
			return statusErr.Message
		}
		return fmt.Sprintf("server answered %d", statusErr.StatusCode)
	case errors.As(err, &decodeErr):
		return "unexpected server response: " + truncate(decodeErr.Body, 120)
	case errors.As(err, &transportErr):
		return "network error: " + transportErr.Err.Error()
	}
	return err.Error()
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

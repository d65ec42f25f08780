package api

import (
	"errors"
	"fmt"
	"net/url"
)

// RemoteError is a non-2xx answer from the LocalCloud API.
type RemoteError struct {
	Method string
	Path   string
	Status int
	// Msg is the server's {"msg": ...} field, if any.
	Msg string
}

func (e *RemoteError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// Message is the text shown to the operator.
func (e *RemoteError) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.Status)
}

// Message renders any client error for the operator.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message()
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return "could not reach the LocalCloud API: " + ue.Err.Error()
	}
	return err.Error()
}

package publishers

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a sink reply that was accepted at the HTTP
// level but whose body could not be decoded. The message has most likely
// been delivered, so callers usually drop it with IgnoreMalformed.
var ErrMalformedResponse = errors.New("malformed sink response")

// SlackAPIError is returned when Slack answers with ok=false.
type SlackAPIError struct {
	Method  string
	Channel string
	Code    string
}

func (e *SlackAPIError) Error() string {
	return fmt.Sprintf("slack %s to %s: %s", e.Method, e.Channel, e.Code)
}

// IgnoreMalformed strips ErrMalformedResponse from err, including from
// errors joined by Fanout. It returns nil if nothing else is left.
func IgnoreMalformed(err error) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var keep []error
		for _, e := range joined.Unwrap() {
			if e = IgnoreMalformed(e); e != nil {
				keep = append(keep, e)
			}
		}
		return errors.Join(keep...)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return nil
	}
	return err
}

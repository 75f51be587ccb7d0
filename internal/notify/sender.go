// Package notify delivers alert notifications off the evaluation path.
package notify

import (
	"context"
	"fmt"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/user"
)

// Sender delivers one alert to one user over a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, u *user.User, a *alert.Alert) error
}

// DispatchError wraps a failed delivery. It is logged, never returned to
// the evaluator.
type DispatchError struct {
	Channel string
	UserID  string
	AlertID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("notify %s: user %s alert %s: %v", e.Channel, e.UserID, e.AlertID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

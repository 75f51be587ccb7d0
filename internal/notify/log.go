package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/user"
)

// LogSender writes notifications to the log. Used in development.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a log sender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name implements Sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, u *user.User, a *alert.Alert) error {
	s.logger.Info().
		Str("user_id", u.ID).
		Str("alert_id", a.ID).
		Str("location_id", a.LocationID).
		Str("pollutant", string(a.Pollutant)).
		Float64("value", a.Value).
		Float64("limit", a.Limit).
		Msg("alert notification")
	return nil
}

// Ensure LogSender implements Sender interface.
var _ Sender = (*LogSender)(nil)

package notify_test

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/aqi"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/notify"
	"github.com/aqmonitor/aqm/internal/user"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newEmailSender(t *testing.T, sent *[]capturedMail, sendErr error) *notify.EmailSender {
	t.Helper()
	locations := measurement.NewInMemoryRepository()
	locations.AddLocation(&measurement.Location{ID: "loc_a", Name: "Harbour District"})

	return notify.NewEmailSender(notify.EmailSenderConfig{
		SMTP: notify.SMTPConfig{
			Host: "smtp.example.org",
			Port: 587,
			From: "alerts@example.org",
		},
		Locations: locations,
		SendMail: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			*sent = append(*sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
			return sendErr
		},
		Logger: zerolog.Nop(),
	})
}

func TestEmailSender_Send(t *testing.T) {
	var sent []capturedMail
	sender := newEmailSender(t, &sent, nil)
	u := &user.User{ID: "usr_1", Username: "dana", Email: "dana@example.org", EmailAlertsEnabled: true}

	require.NoError(t, sender.Send(context.Background(), u, testAlert("alt_1")))

	require.Len(t, sent, 1)
	mail := sent[0]
	assert.Equal(t, "smtp.example.org:587", mail.addr)
	assert.Equal(t, []string{"dana@example.org"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Air quality alert: AQI at Harbour District")
	assert.Contains(t, mail.msg, "Measured value: 150")
	assert.Contains(t, mail.msg, "Your limit:     100")
	assert.Contains(t, mail.msg, string(aqi.CategoryUnhealthySensitive))
}

func TestEmailSender_SkipsWhenDisabled(t *testing.T) {
	var sent []capturedMail
	sender := newEmailSender(t, &sent, nil)

	u := &user.User{ID: "usr_1", Email: "dana@example.org", EmailAlertsEnabled: false}
	require.NoError(t, sender.Send(context.Background(), u, testAlert("alt_1")))

	u = &user.User{ID: "usr_2", EmailAlertsEnabled: true}
	require.NoError(t, sender.Send(context.Background(), u, testAlert("alt_2")))

	assert.Empty(t, sent)
}

func TestEmailSender_PropagatesSendFailure(t *testing.T) {
	var sent []capturedMail
	sender := newEmailSender(t, &sent, errors.New("421 service not available"))
	u := &user.User{ID: "usr_1", Email: "dana@example.org", EmailAlertsEnabled: true}

	err := sender.Send(context.Background(), u, testAlert("alt_1"))
	assert.ErrorContains(t, err, "421")
}

func TestEmailSender_RenderUnitsAndUnknownLocation(t *testing.T) {
	sender := notify.NewEmailSender(notify.EmailSenderConfig{Logger: zerolog.Nop()})
	a := testAlert("alt_1")
	a.Pollutant = measurement.PollutantPM25
	a.Value = 40.25
	a.Limit = 35.5
	a.LocationID = "loc_unnamed"

	subject, body, err := sender.Render(context.Background(), &user.User{Username: "dana"}, a)
	require.NoError(t, err)

	assert.Equal(t, "Air quality alert: PM2.5 at loc_unnamed", subject)
	assert.Contains(t, body, "40.25 µg/m³")
	assert.Contains(t, body, "35.5 µg/m³")
	assert.True(t, strings.HasPrefix(body, "Hello dana,"))
}

func TestAdvisory(t *testing.T) {
	category, _ := notify.Advisory(measurement.PollutantAQI, 320)
	assert.Equal(t, string(aqi.CategoryHazardous), category)

	category, _ = notify.Advisory(measurement.PollutantPM25, 40)
	assert.Equal(t, string(aqi.CategoryUnhealthySensitive), category)

	category, advice := notify.Advisory(measurement.PollutantNO2, 0.3)
	assert.Equal(t, "Elevated", category)
	assert.NotEmpty(t, advice)
}

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/aqi"
	"github.com/aqmonitor/aqm/internal/measurement"
	"github.com/aqmonitor/aqm/internal/user"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// LocationLookup resolves location names for message bodies.
type LocationLookup interface {
	GetLocation(ctx context.Context, id string) (*measurement.Location, error)
}

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSenderConfig holds configuration for EmailSender.
type EmailSenderConfig struct {
	SMTP SMTPConfig

	// Locations resolves location names. Optional.
	Locations LocationLookup

	// SendMail delivers the message. Default: smtp.SendMail.
	SendMail SendMailFunc

	Logger zerolog.Logger
}

// EmailSender sends alert e-mails to users who enabled them.
type EmailSender struct {
	smtp      SMTPConfig
	locations LocationLookup
	sendMail  SendMailFunc
	logger    zerolog.Logger
}

// NewEmailSender creates an e-mail sender.
func NewEmailSender(cfg EmailSenderConfig) *EmailSender {
	if cfg.SendMail == nil {
		cfg.SendMail = smtp.SendMail
	}
	return &EmailSender{
		smtp:      cfg.SMTP,
		locations: cfg.Locations,
		sendMail:  cfg.SendMail,
		logger:    cfg.Logger,
	}
}

// Name implements Sender.
func (s *EmailSender) Name() string {
	return "email"
}

var emailTemplate = template.Must(template.New("alert").Parse(`Hello {{.Username}},

The {{.Pollutant}} level at {{.Location}} has exceeded your limit.

Measured value: {{.Value}}{{if .Unit}} {{.Unit}}{{end}}
Your limit:     {{.Limit}}{{if .Unit}} {{.Unit}}{{end}}
Detected at:    {{.TriggeredAt}}

Health advisory ({{.Category}}):
{{.Advisory}}

You receive this message because e-mail alerts are enabled on your account.
`))

type emailData struct {
	Username    string
	Pollutant   string
	Location    string
	Value       string
	Limit       string
	Unit        string
	TriggeredAt string
	Category    string
	Advisory    string
}

// Send renders and mails the alert. Users without an address or with
// e-mail alerts disabled are skipped silently.
func (s *EmailSender) Send(ctx context.Context, u *user.User, a *alert.Alert) error {
	if !u.EmailAlertsEnabled || u.Email == "" {
		s.logger.Debug().Str("user_id", u.ID).Msg("e-mail alerts disabled, skipping")
		return nil
	}

	subject, body, err := s.Render(ctx, u, a)
	if err != nil {
		return err
	}

	if s.smtp.Host == "" {
		s.logger.Info().
			Str("user_id", u.ID).
			Str("subject", subject).
			Msg("SMTP not configured, skipping e-mail")
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.smtp.From)
	fmt.Fprintf(&msg, "To: %s\r\n", u.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.smtp.Username != "" {
		auth = smtp.PlainAuth("", s.smtp.Username, s.smtp.Password, s.smtp.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.smtp.Host, s.smtp.Port)
	if err := s.sendMail(addr, auth, s.smtp.From, []string{u.Email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Render returns the subject and body for an alert e-mail.
func (s *EmailSender) Render(ctx context.Context, u *user.User, a *alert.Alert) (string, string, error) {
	location := a.LocationID
	if s.locations != nil {
		if loc, err := s.locations.GetLocation(ctx, a.LocationID); err == nil && loc.Name != "" {
			location = loc.Name
		}
	}

	category, advisory := Advisory(a.Pollutant, a.Value)
	data := emailData{
		Username:    u.Username,
		Pollutant:   string(a.Pollutant),
		Location:    location,
		Value:       formatValue(a.Value),
		Limit:       formatValue(a.Limit),
		Unit:        a.Pollutant.Unit(),
		TriggeredAt: a.TriggeredAt.UTC().Format("2006-01-02 15:04 MST"),
		Category:    category,
		Advisory:    advisory,
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render e-mail: %w", err)
	}

	subject := fmt.Sprintf("Air quality alert: %s at %s", a.Pollutant, location)
	return subject, buf.String(), nil
}

// Advisory returns the health category and advice for a measured value.
// PM2.5 and AQI values map onto the index categories; other pollutants get
// a generic advisory.
func Advisory(p measurement.Pollutant, value float64) (string, string) {
	var index int
	switch p {
	case measurement.PollutantPM25:
		index = aqi.ToUSAQI(value)
	case measurement.PollutantAQI:
		index = int(value)
	default:
		return "Elevated", "Concentrations are above recommended levels. Limit prolonged outdoor exertion."
	}

	category := aqi.CategoryFor(index)
	var advice string
	switch category {
	case aqi.CategoryGood, aqi.CategoryModerate:
		advice = "Unusually sensitive people should consider reducing prolonged outdoor exertion."
	case aqi.CategoryUnhealthySensitive:
		advice = "Children, older adults and people with heart or lung disease should reduce prolonged outdoor exertion."
	case aqi.CategoryUnhealthy:
		advice = "Everyone should reduce prolonged outdoor exertion; sensitive groups should avoid it."
	case aqi.CategoryVeryUnhealthy:
		advice = "Avoid prolonged outdoor exertion. Sensitive groups should remain indoors."
	default:
		advice = "Health warning of emergency conditions. Everyone should avoid all outdoor exertion."
	}
	return string(category), advice
}

func formatValue(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// Ensure EmailSender implements Sender interface.
var _ Sender = (*EmailSender)(nil)

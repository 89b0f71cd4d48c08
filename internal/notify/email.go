package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	return sent.Id, nil
}

// LogSender only logs; used when no API key is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	s.logger.InfoContext(ctx, "email not sent, no provider configured",
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return "", nil
}

var statusTemplate = template.Must(template.New("status").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Dear {{.RequesterName}},</p>
<p>Your request for <strong>{{.UnitsNeeded}} unit(s) of {{.BloodGroup}}</strong> in {{.City}}
is now <strong>{{.Status}}</strong>.</p>
{{if .FulfilledDate}}<p>Fulfilled on {{.FulfilledDate.Format "2 Jan 2006 15:04 MST"}}.</p>{{end}}
<p>Reference: {{.ID}}</p>
</body></html>`))

// StatusMessage renders the email sent to a requester after a status change.
func StatusMessage(req domain.BloodRequest) (Message, error) {
	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, req); err != nil {
		return Message{}, fmt.Errorf("render status email: %w", err)
	}
	return Message{
		To:      []string{req.Email},
		Subject: fmt.Sprintf("Blood request %s: %s", shortID(req.ID), req.Status),
		HTML:    buf.String(),
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package apply

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

// EmailConfig holds SMTP connection details.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails operators about every applied recommendation. Chain it after
// the applier that acts so a failed apply sends nothing.
type EmailNotifier struct {
	cfg  EmailConfig
	send sendFunc
}

// NewEmailNotifier creates an EmailNotifier from config.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail}
}

func (n *EmailNotifier) Apply(ctx context.Context, rec domain.Recommendation) error {
	ctx, span := otel.Tracer("apply").Start(ctx, "apply.email")
	defer span.End()

	if len(n.cfg.To) == 0 {
		err := errors.New("email notifier has no recipients")
		span.RecordError(err)
		span.SetStatus(codes.Error, "no recipients")
		return err
	}
	span.SetAttributes(attribute.StringSlice("email.to", n.cfg.To))

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := buildMIME(n.cfg.From, n.cfg.To, subject(rec), body(rec))

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	// smtp.SendMail ignores ctx; run it aside so cancellation still returns.
	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.cfg.From, n.cfg.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "smtp send failed")
			return fmt.Errorf("smtp send for %s: %w", rec.ID, err)
		}
		return nil
	case <-ctx.Done():
		err := fmt.Errorf("email send timed out: %w", ctx.Err())
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		return err
	}
}

func subject(rec domain.Recommendation) string {
	s := fmt.Sprintf("[%s] %s applied", rec.Urgency, rec.Type)
	if rec.ProductID != "" {
		s += " for " + rec.ProductID
	}
	return s
}

func body(rec domain.Recommendation) string {
	return fmt.Sprintf("%s\n\nagent: %s\nconfidence: %.2f\nimpact: %s\nrationale: %s\nid: %s\n",
		rec.Text, rec.Agent, rec.Confidence, rec.Impact, rec.Rationale, rec.ID)
}

func buildMIME(from string, to []string, subject, body string) []byte {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, strings.Join(to, ", "), subject, body,
	)
	return []byte(msg)
}

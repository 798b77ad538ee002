package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"gopkg.in/gomail.v2"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/pkg/logger"
)

// ErrBreakerOpen is returned while the SMTP circuit breaker rejects sends
var ErrBreakerOpen = errors.New("email circuit breaker open")

// Dialer is the subset of *gomail.Dialer the sink needs
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink sends through SMTP behind a circuit breaker so a dead relay
// fails fast instead of holding the dispatcher for every message.
type EmailSink struct {
	dialer  Dialer
	from    string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *logger.Logger
}

var _ Sink = (*EmailSink)(nil)

// NewEmailSink builds a sink from notification settings
func NewEmailSink(cfg config.NotificationsConfig, log *logger.Logger) *EmailSink {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUsername
	}
	return NewEmailSinkWithDialer(d, from, cfg.BreakerFailures, config.MustDuration(cfg.BreakerCooldown, time.Minute), log)
}

// NewEmailSinkWithDialer wires an explicit dialer
func NewEmailSinkWithDialer(d Dialer, from string, failures uint32, cooldown time.Duration, log *logger.Logger) *EmailSink {
	if log == nil {
		log = logger.Nop()
	}
	if failures == 0 {
		failures = 5
	}
	log = log.WithComponent("email")

	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &EmailSink{
		dialer:  d,
		from:    from,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		log:     log,
	}
}

func (s *EmailSink) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrInvalidMessage
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.dialer.DialAndSend(m)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	case err != nil:
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	return nil
}

// State reports the breaker state for health endpoints
func (s *EmailSink) State() string {
	return s.breaker.State().String()
}

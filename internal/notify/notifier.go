package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/microfinance-cli/internal/metrics"
	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/resilience"
	"github.com/sells-group/microfinance-cli/pkg/twilio"
)

// ErrNotConfigured is returned when no SMS provider credentials are set.
var ErrNotConfigured = eris.New("notify: sms sender not configured")

// Recorder persists outbound messages and their delivery state.
type Recorder interface {
	RecordMessage(ctx context.Context, m *model.Message) error
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, providerSID, errMsg string) error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRecorder stores every message sent through the notifier.
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.rec = r }
}

// WithRateLimit caps sends per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(n *Notifier) {
		if perSecond > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(n *Notifier) { n.policy = p }
}

// Notifier delivers SMS messages through a provider client.
type Notifier struct {
	sender  twilio.Client
	rec     Recorder
	limiter *rate.Limiter
	policy  resilience.Policy
}

// New creates a Notifier. A nil sender yields a notifier whose sends fail
// with ErrNotConfigured.
func New(sender twilio.Client, opts ...Option) *Notifier {
	n := &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		policy:  resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(n)
	}
	n.policy.OnRetry = resilience.LogRetry("twilio", "send_sms")
	n.policy.Retryable = resilience.IsTransient
	return n
}

// Configured reports whether a provider is available.
func (n *Notifier) Configured() bool { return n.sender != nil }

// Send delivers body to the given number and records the outcome. The
// returned message reflects the final delivery state even when err is set.
func (n *Notifier) Send(ctx context.Context, to, body string, typ model.MessageType) (*model.Message, error) {
	msg := &model.Message{
		To:       to,
		Content:  body,
		Type:     typ,
		Status:   model.MessagePending,
		SendTime: time.Now().UTC(),
	}
	if n.rec != nil {
		if err := n.rec.RecordMessage(ctx, msg); err != nil {
			return nil, eris.Wrap(err, "notify: record message")
		}
	}

	sid, sendErr := n.deliver(ctx, to, body)
	if sendErr != nil {
		msg.Status = model.MessageFailed
		msg.Error = sendErr.Error()
		zap.L().Warn("sms delivery failed",
			zap.String("message_id", msg.ID),
			zap.String("type", string(typ)),
			zap.Error(sendErr),
		)
	} else {
		msg.Status = model.MessageSent
		msg.ProviderSID = sid
		zap.L().Info("sms sent", zap.String("message_id", msg.ID), zap.String("sid", sid))
	}
	metrics.NotificationsTotal.WithLabelValues(string(msg.Status)).Inc()

	if n.rec != nil {
		if err := n.rec.UpdateMessageStatus(ctx, msg.ID, msg.Status, msg.ProviderSID, msg.Error); err != nil {
			zap.L().Error("update message status", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	return msg, sendErr
}

func (n *Notifier) deliver(ctx context.Context, to, body string) (string, error) {
	if n.sender == nil {
		return "", ErrNotConfigured
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "notify: rate limit wait")
	}
	return resilience.RetryValue(ctx, n.policy, func(ctx context.Context) (string, error) {
		sms, err := n.sender.SendSMS(ctx, to, body)
		if err != nil {
			var apiErr *twilio.APIError
			if errors.As(err, &apiErr) && resilience.RetryableStatus(apiErr.StatusCode) {
				return "", resilience.MarkTransient(err, apiErr.StatusCode)
			}
			return "", err
		}
		return sms.SID, nil
	})
}

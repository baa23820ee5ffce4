// Package notify contains NotificationGateway implementations that talk to
// drivers directly.
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

// Channels reported on receipts.
const (
	ChannelVoice = "voice"
	ChannelSMS   = "sms"
)

// ProviderError is a non-2xx answer from the telephony API.
type ProviderError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *ProviderError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != fasthttp.StatusTooManyRequests
}

// ErrProviderTimeout is returned when the API did not answer in time. It
// matches context.DeadlineExceeded.
var ErrProviderTimeout = fmt.Errorf("provider timeout: %w", context.DeadlineExceeded)

// TwilioConfig configures a Twilio-compatible REST client.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// Twilio places voice calls and sends SMS through the Twilio REST API.
// Notify tries a voice call first and falls back to SMS.
type Twilio struct {
	client *fasthttp.Client
	cfg    TwilioConfig
	auth   string
}

// NewTwilio creates a Twilio client.
func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Twilio{
		client: &fasthttp.Client{
			Name:                "rescuelink-notify",
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		cfg:  cfg,
		auth: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.AccountSID+":"+cfg.AuthToken)),
	}
}

// Notify implements ports.NotificationGateway.
func (t *Twilio) Notify(ctx context.Context, n domain.Notification) (domain.NotificationReceipt, error) {
	sid, callErr := t.PlaceCall(ctx, n.Contact, n.Message)
	if callErr == nil {
		return domain.NotificationReceipt{Status: "queued", ProviderID: sid, Channel: ChannelVoice}, nil
	}
	if ctx.Err() != nil {
		return domain.NotificationReceipt{}, ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		// fasthttp can give up on the deadline before ctx reports it.
		return domain.NotificationReceipt{}, fmt.Errorf("call: %v: %w", callErr, context.DeadlineExceeded)
	}

	slog.Warn("voice call failed, falling back to sms",
		"dispatch_id", n.DispatchID, "ambulance_id", n.AmbulanceID, "error", callErr)

	sid, smsErr := t.SendSMS(ctx, n.Contact, n.Message)
	if smsErr != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("call: %v; sms: %w", callErr, smsErr)
	}
	return domain.NotificationReceipt{Status: "queued", ProviderID: sid, Channel: ChannelSMS}, nil
}

// PlaceCall starts a voice call that reads message to the callee.
func (t *Twilio) PlaceCall(ctx context.Context, to, message string) (string, error) {
	twiml := `<Response><Say loop="2">` + html.EscapeString(message) + `</Say></Response>`
	return t.post(ctx, "Calls.json", map[string]string{
		"To":    to,
		"From":  t.cfg.FromNumber,
		"Twiml": twiml,
	})
}

// SendSMS sends message as a text.
func (t *Twilio) SendSMS(ctx context.Context, to, message string) (string, error) {
	return t.post(ctx, "Messages.json", map[string]string{
		"To":   to,
		"From": t.cfg.FromNumber,
		"Body": message,
	})
}

func (t *Twilio) post(ctx context.Context, resource string, form map[string]string) (string, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s", t.cfg.BaseURL, t.cfg.AccountSID, resource))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set(fasthttp.HeaderAuthorization, t.auth)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	for k, v := range form {
		args.Set(k, v)
	}
	req.SetBody(args.QueryString())

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = t.client.DoDeadline(req, resp, deadline)
	} else {
		err = t.client.DoTimeout(req, resp, t.cfg.Timeout)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return "", fmt.Errorf("%s: %w", resource, ErrProviderTimeout)
		}
		return "", fmt.Errorf("%s: %w", resource, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		perr := &ProviderError{StatusCode: status}
		_ = json.Unmarshal(resp.Body(), perr)
		return "", perr
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode %s response: %w", resource, err)
	}
	if out.SID == "" {
		return "", fmt.Errorf("%s: response without sid", resource)
	}
	return out.SID, nil
}

package notify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/rescuelink/internal/adapters/notify"
	"github.com/samirrijal/rescuelink/internal/core/domain"
)

type fakeTwilio struct {
	mu       sync.Mutex
	requests []*http.Request
	forms    []map[string]string
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeTwilio) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.forms = append(f.forms, form)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeTwilio) snapshot() ([]*http.Request, []map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...), append([]map[string]string(nil), f.forms...)
}

func newTwilio(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*notify.Twilio, *fakeTwilio) {
	t.Helper()
	fake := &fakeTwilio{handler: h}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	tw := notify.NewTwilio(notify.TwilioConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15005550006",
		Timeout:    2 * time.Second,
	})
	return tw, fake
}

func sampleNotification() domain.Notification {
	return domain.Notification{
		DispatchID:    "d-1",
		AmbulanceID:   "a-1",
		Contact:       "+9779800000001",
		Message:       "EMERGENCY <test> & go",
		CallbackPhone: "+15551234567",
	}
}

func TestTwilio_Notify_VoiceCall(t *testing.T) {
	tw, fake := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA42","status":"queued"}`))
	})

	receipt, err := tw.Notify(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ProviderID != "CA42" || receipt.Channel != notify.ChannelVoice {
		t.Errorf("unexpected receipt %+v", receipt)
	}

	requests, forms := fake.snapshot()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	req := requests[0]
	if req.URL.Path != "/2010-04-01/Accounts/AC123/Calls.json" {
		t.Errorf("unexpected path %s", req.URL.Path)
	}
	user, pass, ok := req.BasicAuth()
	if !ok || user != "AC123" || pass != "secret" {
		t.Errorf("expected basic auth, got %q %q %v", user, pass, ok)
	}
	form := forms[0]
	if form["To"] != "+9779800000001" || form["From"] != "+15005550006" {
		t.Errorf("unexpected form %v", form)
	}
	if !strings.Contains(form["Twiml"], "EMERGENCY &lt;test&gt; &amp; go") {
		t.Errorf("expected escaped message in twiml, got %q", form["Twiml"])
	}
}

func TestTwilio_Notify_FallsBackToSMS(t *testing.T) {
	tw, fake := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/Calls.json") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":13224,"message":"number not voice capable","status":400}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM7"}`))
	})

	receipt, err := tw.Notify(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ProviderID != "SM7" || receipt.Channel != notify.ChannelSMS {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	_, forms := fake.snapshot()
	if len(forms) != 2 || forms[1]["Body"] != "EMERGENCY <test> & go" {
		t.Errorf("expected sms with raw body, got %v", forms)
	}
}

func TestTwilio_Notify_BothFail(t *testing.T) {
	tw, _ := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := tw.Notify(context.Background(), sampleNotification())
	var perr *notify.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusServiceUnavailable || perr.Permanent() {
		t.Errorf("expected transient 503, got %+v", perr)
	}
}

func TestTwilio_SendSMS_PermanentError(t *testing.T) {
	tw, _ := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To number"}`))
	})

	_, err := tw.SendSMS(context.Background(), "+1", "hi")
	var perr *notify.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !perr.Permanent() || perr.Code != 21211 {
		t.Errorf("expected permanent 21211, got %+v", perr)
	}
}

func TestTwilio_DeadlineExceeded(t *testing.T) {
	release := make(chan struct{})
	tw, _ := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := tw.PlaceCall(ctx, "+15550000000", "hi")
	if !errors.Is(err, notify.ErrProviderTimeout) {
		t.Fatalf("expected ErrProviderTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected provider timeout to match context.DeadlineExceeded")
	}
}

func TestTwilio_Notify_NoFallbackAfterDeadline(t *testing.T) {
	release := make(chan struct{})
	tw, fake := newTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := tw.Notify(ctx, sampleNotification())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	reqs, _ := fake.snapshot()
	for _, r := range reqs {
		if strings.HasSuffix(r.URL.Path, "/Messages.json") {
			t.Errorf("sms fallback attempted after the deadline")
		}
	}
}

func TestLogger_Notify(t *testing.T) {
	l := notify.NewLogger(nil)
	receipt, err := l.Notify(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(receipt.ProviderID, "log-") || receipt.Channel != "log" {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vintrail/internal/model"
	"vintrail/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}
type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
	Next    *time.Time
}
type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError, Next: nextAttemptAt})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode)
}

func TestWorkerDeliverySignsPayload(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	payload := []byte(`{"id":"evt1","type":"plan.confirmed"}`)
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "sub1", "plan.confirmed", srv.URL, "secret", payload)
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != "plan.confirmed" {
		t.Fatalf("event type header: %q", gotType)
	}
	if gotSig == "" || !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: %q", gotSig)
	}
	if len(rs.marks) != 1 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "sub1", "plan.saved", srv.URL, "", []byte(`{}`))

	// first attempt schedules a retry with backoff
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success {
		t.Fatalf("first attempt: %+v", rs.marks)
	}
	if rs.marks[0].Next == nil || !rs.marks[0].Next.After(time.Now()) {
		t.Fatalf("retry not scheduled in the future")
	}

	// nothing due until the backoff elapses
	w.processOnce()
	if len(rs.marks) != 1 || len(rs.fails) != 0 {
		t.Fatalf("backoff not honored: marks=%d fails=%d", len(rs.marks), len(rs.fails))
	}
}

func TestWorkerFailsAtMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "sub1", "plan.saved", srv.URL, "", []byte(`{}`))

	w.processOnce()
	if len(rs.fails) != 1 || rs.fails[0].Code != 500 {
		t.Fatalf("expected terminal failure, got: %+v", rs.fails)
	}
	// dead deliveries never come back
	w.processOnce()
	if len(rs.fails) != 1 {
		t.Fatalf("failed delivery retried")
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("attempt 0: %v", nextBackoff(0))
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("attempt 3: %v", nextBackoff(3))
	}
	if nextBackoff(20) != time.Hour {
		t.Fatalf("cap: %v", nextBackoff(20))
	}
	if nextBackoff(-1) != time.Second {
		t.Fatalf("negative attempts: %v", nextBackoff(-1))
	}
}

func TestSignRoundTrip(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := SignHMAC("s3cret", body)
	if !VerifyHMAC("s3cret", body, sig) {
		t.Fatalf("signature does not verify")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatalf("wrong secret verified")
	}
	if VerifyHMAC("s3cret", []byte(`tampered`), sig) {
		t.Fatalf("tampered body verified")
	}
	if VerifyHMAC("s3cret", body, "zz") {
		t.Fatalf("non-hex signature verified")
	}
}

func TestPublisherEnqueuesPerSubscription(t *testing.T) {
	m := store.NewMemory()
	p := NewPublisher(m)
	ctx := context.Background()

	// no subscriptions: emit is a no-op
	p.Emit(ctx, EventPlanSaved, map[string]any{"planId": "p1"})
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("emit without subscribers enqueued: %+v", due)
	}

	sub1, _ := m.CreateSubscription(ctx, subscriptionFor(EventPlanSaved))
	sub2, _ := m.CreateSubscription(ctx, subscriptionFor(EventPlanSaved, EventPlanConfirmed))
	_, _ = m.CreateSubscription(ctx, subscriptionFor(EventPlanConfirmed))

	p.Emit(ctx, EventPlanSaved, map[string]any{"planId": "p1"})
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 2 {
		t.Fatalf("want 2 deliveries, got %d", len(due))
	}
	seen := map[string]bool{}
	for _, d := range due {
		seen[d.SubscriptionID] = true
		if d.EventType != EventPlanSaved {
			t.Fatalf("event type: %s", d.EventType)
		}
	}
	if !seen[sub1.ID] || !seen[sub2.ID] {
		t.Fatalf("wrong subscriptions matched: %+v", seen)
	}
}

func subscriptionFor(events ...string) model.SubscriptionRequest {
	return model.SubscriptionRequest{URL: "https://example.invalid/hook", Events: events, Secret: "shh"}
}

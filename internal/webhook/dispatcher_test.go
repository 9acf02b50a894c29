package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/queue"
)

type fakeRedeliveryQueue struct {
	mu       sync.Mutex
	payloads []queue.WebhookDeliverPayload
}

func (f *fakeRedeliveryQueue) EnqueueWebhookDeliver(p queue.WebhookDeliverPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeRedeliveryQueue) snapshot() []queue.WebhookDeliverPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.WebhookDeliverPayload(nil), f.payloads...)
}

func TestFailedDeliveryFallsBackToJobQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	jobs := &fakeRedeliveryQueue{}
	d := NewDispatcher(nil, jobs)

	id := uuid.New()
	d.Enqueue(DeliveryRequest{
		WebhookID: id,
		URL:       srv.URL,
		Secret:    "whsec_test",
		Event:     "device.connected",
		Payload:   []byte(`{"id":"x"}`),
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		if got := jobs.snapshot(); len(got) > 0 {
			p := got[0]
			if p.WebhookID != id.String() {
				t.Errorf("redelivery webhook id = %q, want %q", p.WebhookID, id)
			}
			if p.Event != "device.connected" {
				t.Errorf("redelivery event = %q, want device.connected", p.Event)
			}
			if p.Payload != `{"id":"x"}` {
				t.Errorf("redelivery payload = %q", p.Payload)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("failed delivery never reached the job queue")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSuccessfulDeliveryNotRequeued(t *testing.T) {
	served := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served <- r.Header.Clone()
	}))
	defer srv.Close()

	jobs := &fakeRedeliveryQueue{}
	d := NewDispatcher(nil, jobs)

	payload := []byte(`{"event":"message.sent"}`)
	d.Enqueue(DeliveryRequest{
		WebhookID: uuid.New(),
		URL:       srv.URL,
		Secret:    "whsec_test",
		Event:     "message.sent",
		Payload:   payload,
	})

	var hdr http.Header
	select {
	case hdr = <-served:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery never reached the endpoint")
	}

	if got := hdr.Get("X-Webhook-Event"); got != "message.sent" {
		t.Errorf("X-Webhook-Event = %q, want message.sent", got)
	}
	if !VerifySignature(payload, "whsec_test", hdr.Get("X-Webhook-Signature")) {
		t.Error("delivered signature does not verify")
	}

	time.Sleep(50 * time.Millisecond)
	if got := jobs.snapshot(); len(got) != 0 {
		t.Fatalf("successful delivery requeued: %+v", got)
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	payload := []byte(`{"event":"device.connected"}`)

	sig := Sign(payload, "whsec_test")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature %q missing scheme prefix", sig)
	}
	if !VerifySignature(payload, "whsec_test", sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifySignatureRejects(t *testing.T) {
	payload := []byte(`{"event":"device.connected"}`)
	sig := Sign(payload, "whsec_test")

	if VerifySignature(payload, "whsec_other", sig) {
		t.Error("signature verified with wrong secret")
	}
	if VerifySignature([]byte(`{"event":"tampered"}`), "whsec_test", sig) {
		t.Error("signature verified for tampered payload")
	}
	if VerifySignature(payload, "whsec_test", "sha256=deadbeef") {
		t.Error("bogus signature verified")
	}
	if VerifySignature(payload, "whsec_test", "") {
		t.Error("empty signature verified")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	payload := []byte("same bytes")
	if Sign(payload, "s") != Sign(payload, "s") {
		t.Error("signature not deterministic")
	}
	if Sign(payload, "s1") == Sign(payload, "s2") {
		t.Error("different secrets produced identical signatures")
	}
}

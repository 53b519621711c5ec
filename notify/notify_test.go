package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/canvasd/canvas"
)

func TestWebhook_DeliversEvent(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
	}))
	t.Cleanup(srv.Close)

	sink := NewWebhook(srv.URL)
	payload := canvas.Payload{Elements: []canvas.Element{{"id": "a"}}}
	if err := sink.Notify(context.Background(), EventDraw, payload); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	var e struct {
		Event   string         `json:"event"`
		Payload canvas.Payload `json:"payload"`
	}
	if err := json.Unmarshal(gotBody, &e); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if e.Event != EventDraw {
		t.Fatalf("event = %q", e.Event)
	}
	if len(e.Payload.Elements) != 1 {
		t.Fatalf("payload lost elements: %s", gotBody)
	}
	// Absent fields must travel as null, not be dropped.
	if !strings.Contains(string(gotBody), `"appState":null`) {
		t.Fatalf("absent appState not serialized as null: %s", gotBody)
	}
}

func TestWebhook_SignsWhenSecretSet(t *testing.T) {
	const secret = "hmac_key"
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	t.Cleanup(srv.Close)

	sink := NewWebhook(srv.URL, WithSecret(secret))
	if err := sink.Notify(context.Background(), EventDraw, canvas.Payload{}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Fatalf("signature missing sha256= prefix: %q", gotSig)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSig, want)
	}
}

func TestWebhook_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	sink := NewWebhook(srv.URL)
	err := sink.Notify(context.Background(), EventDraw, canvas.Payload{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error should carry the status: %v", err)
	}
}

func TestWebhook_UnreachableTargetIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // deliberately dead

	sink := NewWebhook(srv.URL)
	if err := sink.Notify(context.Background(), EventDraw, canvas.Payload{}); err == nil {
		t.Fatal("expected error for unreachable target")
	}
}

func TestMulti_AttemptsAllSinks(t *testing.T) {
	var calls []string
	ok := Func(func(ctx context.Context, event string, p canvas.Payload) error {
		calls = append(calls, "ok")
		return nil
	})
	boom := Func(func(ctx context.Context, event string, p canvas.Payload) error {
		calls = append(calls, "boom")
		return errors.New("boom")
	})

	err := Multi{boom, ok}.Notify(context.Background(), EventDraw, canvas.Payload{})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(calls) != 2 {
		t.Fatalf("all sinks must be attempted, got %v", calls)
	}
}

func TestLog_NeverFails(t *testing.T) {
	if err := (&Log{}).Notify(context.Background(), EventDraw, canvas.Payload{}); err != nil {
		t.Fatalf("log sink errored: %v", err)
	}
}

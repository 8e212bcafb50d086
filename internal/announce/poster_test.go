package announce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWebhookPosterSignsPayload(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
		gotID   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Mustard-Signature")
		gotID = r.Header.Get("X-Mustard-Announcement")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	poster := NewWebhookPoster(srv.URL, "relay-secret", zerolog.Nop())
	post := Post{
		AnnouncementID: "ann-1",
		ChannelID:      "chan-1",
		Channel:        "Mustard",
		Parts:          []string{"first", "second"},
		PostAt:         time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC),
	}
	if err := poster.Post(context.Background(), post); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if gotID != "ann-1" {
		t.Fatalf("announcement header = %q", gotID)
	}
	if !VerifySignature(gotBody, "relay-secret", gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	if VerifySignature(gotBody, "other-secret", gotSig) {
		t.Fatalf("signature verified with the wrong secret")
	}

	var decoded Post
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(decoded.Parts) != 2 || decoded.Parts[1] != "second" {
		t.Fatalf("parts = %v", decoded.Parts)
	}
}

func TestWebhookPosterUnsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sig := r.Header.Get("X-Mustard-Signature"); sig != "" {
			t.Errorf("unexpected signature %q", sig)
		}
	}))
	defer srv.Close()

	if err := NewWebhookPoster(srv.URL, "", zerolog.Nop()).Post(context.Background(), Post{AnnouncementID: "a"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestWebhookPosterRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhookPoster(srv.URL, "s", zerolog.Nop()).Post(context.Background(), Post{AnnouncementID: "a"})
	if err == nil {
		t.Fatalf("expected error for 429")
	}
}

func TestSignPayloadFormat(t *testing.T) {
	sig := SignPayload([]byte("{}"), "secret")
	if len(sig) != len("sha256=")+64 || sig[:7] != "sha256=" {
		t.Fatalf("unexpected signature format %q", sig)
	}
}

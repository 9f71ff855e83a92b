package ingest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

func newTestRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := testIngestConfig{threshold: 0.5}

	pipeline := newTestPipeline(store, cfg)
	h := NewHandler(pipeline, nil, validator.New(), logger.New("test"))

	r := gin.New()
	r.POST("/webhook/leads", SignatureMiddleware(cfg.GetWebhookSigningSecret()), h.Webhook)
	r.GET("/track/pixel.gif", h.Pixel)
	r.POST("/leads/submit", SharedSecretMiddleware(cfg.GetSubmitSharedSecret()), h.Submit)
	r.POST("/admin/ingest/sweep", h.SweepMailboxes)
	return r
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router := newTestRouter(newFakeStore())
	body := []byte(`{"id":"evt-1","lead":{"email":"a@x.com"}}`)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{name: "missing signature", signature: "", want: http.StatusUnauthorized},
		{name: "wrong signature", signature: sign("other-secret", body), want: http.StatusUnauthorized},
		{name: "valid signature", signature: sign("hook-secret", body), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/leads", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.signature != "" {
				req.Header.Set("X-Webhook-Signature", tt.signature)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestWebhookSignatureCoversBody(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	body := []byte(`{"id":"evt-1","lead":{"email":"a@x.com"}}`)
	tampered := []byte(`{"id":"evt-1","lead":{"email":"b@x.com"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/leads", bytes.NewReader(tampered))
	req.Header.Set("X-Webhook-Signature", sign("hook-secret", body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered body accepted: status %d", rec.Code)
	}
	if len(store.people) != 0 {
		t.Fatal("tampered payload reached the pipeline")
	}
}

func TestPixelAlwaysReturnsGIF(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "with identity", url: "/track/pixel.gif?e=a@x.com&k=visit-1"},
		{name: "no identity at all", url: "/track/pixel.gif"},
		{name: "garbage identity", url: "/track/pixel.gif?e=not-an-email&p=12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(newFakeStore())
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
				t.Fatalf("content type = %q, want image/gif", ct)
			}
			if !bytes.Equal(rec.Body.Bytes(), pixelGIF) {
				t.Fatal("response is not the tracking pixel")
			}
		})
	}
}

func TestPixelIngestsIdentity(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/track/pixel.gif?e=a@x.com&fn=Jan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.people) != 1 {
		t.Fatalf("pixel identity not ingested: %d people", len(store.people))
	}
}

func TestSubmitRequiresSharedSecret(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	body := strings.NewReader(`{"email":"a@x.com","firstName":"Jan"}`)

	req := httptest.NewRequest(http.MethodPost, "/leads/submit", body)
	req.Header.Set("X-Ingest-Secret", "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(store.people) != 0 {
		t.Fatal("unauthenticated submission reached the pipeline")
	}
}

func TestSubmitAcceptsLead(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	body := strings.NewReader(`{"email":"a@x.com","firstName":"Jan","idempotencyKey":"req-1"}`)

	req := httptest.NewRequest(http.MethodPost, "/leads/submit", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ingest-Secret", "submit-secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if len(store.people) != 1 {
		t.Fatalf("submission not ingested: %d people", len(store.people))
	}
	if _, ok := store.ledger["submit:req-1"]; !ok {
		t.Fatal("idempotency key not recorded")
	}
}

func TestSweepEndpointUnavailableWithoutClassifier(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest/sweep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

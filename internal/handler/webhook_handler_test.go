package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"instapilot/config"
	"instapilot/internal/queue"
	"instapilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingProducer struct {
	tasks []queue.Task
	err   error
}

func (r *recordingProducer) Enqueue(ctx context.Context, t queue.Task) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, t)
	return nil
}

func webhookRouter(producer queue.Producer) *gin.Engine {
	cfg := &config.Config{
		MetaAppSecret:      "app-secret",
		WebhookVerifyToken: "verify-me",
	}
	h := NewWebhookHandler(cfg, producer, logger.NewNop())
	r := gin.New()
	r.GET("/webhooks/instagram", h.Verify)
	r.POST("/webhooks/instagram", h.Receive)
	return r
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func commentPayload() []byte {
	return []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "ig_1",
			"time": 1700000000,
			"changes": [{
				"field": "comments",
				"value": {"id": "cmt_7", "from": {"id": "user_3"}, "text": "price?"}
			}]
		}]
	}`)
}

func TestVerifyHandshake(t *testing.T) {
	r := webhookRouter(&recordingProducer{})

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "verify-me")
	q.Set("hub.challenge", "12345")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+q.Encode(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("body = %q, want raw challenge", w.Body.String())
	}
}

func TestVerifyHandshakeRejected(t *testing.T) {
	r := webhookRouter(&recordingProducer{})

	cases := map[string]url.Values{
		"wrong token": {"hub.mode": {"subscribe"}, "hub.verify_token": {"nope"}, "hub.challenge": {"1"}},
		"wrong mode":  {"hub.mode": {"unsubscribe"}, "hub.verify_token": {"verify-me"}, "hub.challenge": {"1"}},
		"no params":   {},
	}
	for name, q := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?"+q.Encode(), nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
}

func TestReceiveEnqueues(t *testing.T) {
	producer := &recordingProducer{}
	r := webhookRouter(producer)

	body := commentPayload()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if len(producer.tasks) != 1 {
		t.Fatalf("enqueued = %d", len(producer.tasks))
	}
	task := producer.tasks[0]
	if task.Kind != queue.TaskProcessEvent || task.Event == nil {
		t.Fatalf("task = %+v", task)
	}
	if task.Event.SubjectID != "cmt_7" || task.Event.ActorID != "user_3" {
		t.Errorf("event = %+v", task.Event)
	}
}

func TestReceiveBadSignature(t *testing.T) {
	producer := &recordingProducer{}
	r := webhookRouter(producer)

	body := commentPayload()
	cases := map[string]string{
		"missing":      "",
		"wrong secret": sign("other-secret", body),
		"no prefix":    "deadbeef",
	}
	for name, sig := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Hub-Signature-256", sig)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
	if len(producer.tasks) != 0 {
		t.Errorf("tasks enqueued despite bad signatures")
	}
}

func TestReceiveMalformedBody(t *testing.T) {
	r := webhookRouter(&recordingProducer{})

	body := []byte(`{"object": "instagram", "entry": [`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestReceiveAcksDespiteEnqueueFailure(t *testing.T) {
	producer := &recordingProducer{err: errors.New("redis down")}
	r := webhookRouter(producer)

	body := commentPayload()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestReceiveIgnoresOtherObjects(t *testing.T) {
	producer := &recordingProducer{}
	r := webhookRouter(producer)

	body := []byte(`{"object": "page", "entry": []}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(producer.tasks) != 0 {
		t.Errorf("tasks enqueued for non-instagram object")
	}
}

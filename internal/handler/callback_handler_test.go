package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service/callback"

	"github.com/gin-gonic/gin"
)

type stubIngester struct {
	record  *model.WeChatMessage
	err     error
	payload *callback.MessagePayload
}

func (s *stubIngester) IngestInbound(_ context.Context, _ string, payload *callback.MessagePayload) (*model.WeChatMessage, error) {
	s.payload = payload
	return s.record, s.err
}

type stubUpdater struct {
	err     error
	success bool
	wxId    string
}

func (s *stubUpdater) ApplyLoginEvent(_ context.Context, _ string, success bool, wxId, _, _, _ string) error {
	s.success = success
	s.wxId = wxId
	return s.err
}

func (s *stubUpdater) ApplyStatusEvent(_ context.Context, _ string, _ bool) error {
	return s.err
}

// newCallbackEngine 起一个只挂回调路由的引擎，贴近真实路由配置
func newCallbackEngine(ingester callback.MessageIngester, updater callback.AccountUpdater) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	h := NewCallbackHandler(callback.NewDispatcher(ingester, updater))
	engine.POST("/callback", h.Receive)
	return engine
}

func doCallback(engine *gin.Engine, method, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestCallbackRejectsNonPost(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{}, &stubUpdater{})
	w := doCallback(engine, http.MethodGet, "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestCallbackEmptyBody(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{}, &stubUpdater{})
	w := doCallback(engine, http.MethodPost, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["error"] != "Empty request body" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestCallbackInvalidJSON(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{}, &stubUpdater{})
	w := doCallback(engine, http.MethodPost, "{broken")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Invalid JSON" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestCallbackMissingFields(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{}, &stubUpdater{})
	w := doCallback(engine, http.MethodPost, `{"type":"message"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Invalid callback data" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestCallbackMessageSuccess(t *testing.T) {
	ingester := &stubIngester{record: &model.WeChatMessage{Uuid: 1}}
	engine := newCallbackEngine(ingester, &stubUpdater{})
	body := `{"type":"message","deviceId":"d1","fromUser":"u1","content":"hi","messageType":"text"}`
	w := doCallback(engine, http.MethodPost, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "success" || resp["message"] != "Callback processed" {
		t.Fatalf("unexpected body: %v", resp)
	}
	if ingester.payload == nil || ingester.payload.SenderId != "u1" || ingester.payload.Content != "hi" {
		t.Fatalf("payload fields not delivered to ingestion: %+v", ingester.payload)
	}
}

func TestCallbackProcessingFailure(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{err: errors.New("db down")}, &stubUpdater{})
	body := `{"type":"message","deviceId":"d1","messageId":"m1","senderId":"wx1","messageType":"text"}`
	w := doCallback(engine, http.MethodPost, body)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "error" || resp["message"] != "Failed to process callback" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestCallbackUnknownTypeAccepted(t *testing.T) {
	engine := newCallbackEngine(&stubIngester{}, &stubUpdater{})
	w := doCallback(engine, http.MethodPost, `{"type":"brand_new","deviceId":"d1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown type must be accepted with 200, got %d", w.Code)
	}
}

func TestCallbackLoginEvent(t *testing.T) {
	updater := &stubUpdater{}
	engine := newCallbackEngine(&stubIngester{}, updater)
	body := `{"type":"login","deviceId":"d1","status":"success","wxId":"wx1","nickname":"N"}`
	w := doCallback(engine, http.MethodPost, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !updater.success || updater.wxId != "wx1" {
		t.Fatalf("login event not applied as success: success=%v wxId=%q", updater.success, updater.wxId)
	}
}

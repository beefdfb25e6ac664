package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medifestructuras/asistente/internal/chat"
	"github.com/medifestructuras/asistente/internal/history"
	"github.com/medifestructuras/asistente/internal/log"
	"github.com/medifestructuras/asistente/internal/retrieval"
)

type fakeRetriever struct {
	result retrieval.Result
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ []string) (retrieval.Result, error) {
	return f.result, f.err
}

type fakeHistory struct{}

func (f *fakeHistory) EnsureConversation(context.Context, string) error { return nil }
func (f *fakeHistory) SaveTurn(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeHistory) GetRecent(context.Context, string, int) ([]history.Turn, error) {
	return nil, nil
}

type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.answer, f.err
}

func newTestServer(t *testing.T, retriever chat.Retriever, generator chat.Generator, cfg ServerConfig) *httptest.Server {
	t.Helper()

	bot, err := chat.New(retriever, &fakeHistory{}, generator,
		chat.Config{ContactDelay: -1, SocialDelay: -1}, log.NewNop())
	if err != nil {
		t.Fatalf("chat.New: %v", err)
	}

	cfg.Bot = bot
	cfg.Logger = log.NewNop()
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/chat: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewServerRequiresBot(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("expected error for missing bot")
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, &fakeRetriever{}, &fakeGenerator{answer: "ok"}, ServerConfig{})

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestChatSuccess(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{
		ContextChunks:  []string{"El curso de ETABS cuesta 300 euros."},
		BestSimilarity: 0.91,
	}}
	ts := newTestServer(t, retriever, &fakeGenerator{answer: "El curso cuesta 300 euros."}, ServerConfig{})

	resp := postChat(t, ts, `{"message":"¿Cuánto cuesta el curso de ETABS?","conversation_id":"conv-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(body.Response, "El curso cuesta 300 euros.") {
		t.Errorf("Response = %q, want generated answer prefix", body.Response)
	}
	if !strings.Contains(body.Response, chat.ContactPrompt) {
		t.Error("Response should carry the contact prompt")
	}
	if body.ConversationID != "conv-1" {
		t.Errorf("ConversationID = %q, want conv-1", body.ConversationID)
	}
}

func TestChatAssignsConversationID(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{ContextChunks: []string{"contexto"}}}
	ts := newTestServer(t, retriever, &fakeGenerator{answer: "Respuesta."}, ServerConfig{})

	resp := postChat(t, ts, `{"message":"¿Qué servicios ofrecen?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ConversationID == "" {
		t.Error("expected a generated conversation_id")
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := map[string]struct {
		retriever  *fakeRetriever
		generator  *fakeGenerator
		body       string
		wantStatus int
		wantCode   string
	}{
		"invalid json": {
			retriever:  &fakeRetriever{},
			generator:  &fakeGenerator{},
			body:       `{"message":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_json",
		},
		"empty message": {
			retriever:  &fakeRetriever{},
			generator:  &fakeGenerator{},
			body:       `{"message":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "empty_message",
		},
		"retrieval failure": {
			retriever:  &fakeRetriever{err: errors.New("db down")},
			generator:  &fakeGenerator{},
			body:       `{"message":"¿Cuánto cuesta el curso?"}`,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "retrieval_failed",
		},
		"generation failure": {
			retriever:  &fakeRetriever{result: retrieval.Result{ContextChunks: []string{"contexto"}}},
			generator:  &fakeGenerator{err: errors.New("model timeout")},
			body:       `{"message":"¿Cuánto cuesta el curso?"}`,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "generation_failed",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, tt.retriever, tt.generator, ServerConfig{})
			resp := postChat(t, ts, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error, tt.wantCode)
			}
			if body.Message == "" {
				t.Error("error message must not be empty")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	origin := "https://www.medifestructuras.com"
	ts := newTestServer(t, &fakeRetriever{}, &fakeGenerator{}, ServerConfig{
		CORSOrigins: []string{origin},
	})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/chat", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != origin {
		t.Errorf("Allow-Origin = %q, want %q", got, origin)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Allow-Methods = %q, want POST included", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	ts := newTestServer(t, &fakeRetriever{}, &fakeGenerator{}, ServerConfig{
		CORSOrigins: []string{"https://www.medifestructuras.com"},
	})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/chat", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://evil.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for unknown origin", got)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{ContextChunks: []string{"contexto"}}}
	ts := newTestServer(t, retriever, &fakeGenerator{answer: "Respuesta."}, ServerConfig{
		RateBurst: 2,
	})

	statuses := make([]int, 0, 3)
	for range 3 {
		resp := postChat(t, ts, `{"message":"hola mundo de precios"}`)
		statuses = append(statuses, resp.StatusCode)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("first two requests = %v, want 200s", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestClientIP(t *testing.T) {
	tests := map[string]struct {
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		"remote addr only": {
			remoteAddr: "203.0.113.7:54321",
			want:       "203.0.113.7",
		},
		"proxy headers ignored without trust": {
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "10.0.0.1",
		},
		"x-real-ip wins with trust": {
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			trustProxy: true,
			want:       "203.0.113.7",
		},
		"x-forwarded-for first entry": {
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			trustProxy: true,
			want:       "203.0.113.7",
		},
		"invalid header falls back": {
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panics)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

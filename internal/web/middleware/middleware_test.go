package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRemote() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "untrusted proxy keeps remote addr",
			trusted: []string{"10.0.0.0/8"},
			remote:  "203.0.113.9:5000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "203.0.113.9:5000",
		},
		{
			name:    "trusted proxy uses X-Real-IP",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:5000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4", "X-Forwarded-For": "5.6.7.8"},
			want:    "1.2.3.4",
		},
		{
			name:    "trusted proxy uses first forwarded entry",
			trusted: []string{"127.0.0.1"},
			remote:  "127.0.0.1:5000",
			headers: map[string]string{"X-Forwarded-For": " 5.6.7.8 , 10.0.0.1"},
			want:    "5.6.7.8",
		},
		{
			name:    "invalid header value is ignored",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.1:5000",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.0.0.1:5000",
		},
		{
			name:    "no trusted proxies",
			trusted: nil,
			remote:  "10.0.0.1:5000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "10.0.0.1:5000",
		},
		{
			name:    "bad entries are skipped",
			trusted: []string{"garbage", " ", "10.0.0.0/8"},
			remote:  "10.0.0.1:5000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "1.2.3.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			TrustedRealIP(tt.trusted)(echoRemote()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(2, nil)
	h := rl.Handler(echoRemote())

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("1.1.1.1:1").Code)
	assert.Equal(t, http.StatusOK, do("1.1.1.1:2").Code)

	rec := do("1.1.1.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("2.2.2.2:1").Code, "other clients keep their own bucket")
}

func TestRateLimiter_CustomDeny(t *testing.T) {
	called := false
	rl := NewRateLimiter(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.True(t, rl.Allow("k"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "k"
	rec := httptest.NewRecorder()
	rl.Handler(echoRemote()).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(10, nil)
	rl.Allow("a")
	rl.Allow("b")

	assert.Equal(t, 0, rl.Sweep(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, rl.Sweep(time.Now().Add(time.Second)))
	assert.True(t, rl.Allow("a"), "swept client starts with a fresh bucket")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/enrich", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := buf.String()
	require.Contains(t, out, "msg=request")
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "bytes=5")
	assert.Contains(t, out, "path=/api/enrich")

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())
}

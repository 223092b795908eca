package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orgenrich/internal/config"
	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/propublica"
	"github.com/JonMunkholm/orgenrich/internal/reference"
)

const orgsCSV = "Org Name,City\nRed Cross,DC\nred cross,DC\nUnknown Org,NYC\n"

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadWith(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func referenceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := "EIN , Name,revenue_amt\n123456789,red cross,1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eo1.csv"), []byte(data), 0o644))
	return dir
}

func newTestServer(t *testing.T, refDir string, env map[string]string) *Server {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/123456789.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"organization":{"employee_count":10,"website":"redcross.org","mission":"Relief","officers":[{"name":"Jane","title":"CEO","compensation":100}]}}`))
	}))
	t.Cleanup(api.Close)

	cfg := testConfig(t, env)
	store := reference.NewStore(reference.DirSource{Dir: refDir})
	svc := core.NewService(store, propublica.New(propublica.WithBaseURL(api.URL)), core.Options{
		ReferenceRequired: cfg.Reference.Required,
		MaxUploadBytes:    cfg.Upload.MaxFileSize,
	})

	s := NewServer(svc, cfg)
	t.Cleanup(func() { s.Shutdown(t.Context()) })
	return s
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, s *Server, target, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "file", name, content)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := get(s, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, core.DefaultMaxConcurrentRuns, resp.Runs.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := get(s, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `<form method="post" action="/enrich"`)
	assert.Contains(t, body, "Reference data")
}

func TestEnrichAPI_RoundTrip(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := upload(t, s, "/api/enrich", "orgs.csv", orgsCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID        string            `json:"id"`
		Warnings  []core.Warning    `json:"warnings"`
		Stats     core.RunStats     `json:"stats"`
		Downloads map[string]string `json:"downloads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, 3, resp.Stats.InputRows)
	assert.Equal(t, 2, resp.Stats.OutputRows)
	assert.Equal(t, 1, resp.Stats.LookupsFound)
	assert.Equal(t, "/api/runs/"+resp.ID+"/download?format=xlsx", resp.Downloads["xlsx"])

	run := get(s, "/api/runs/"+resp.ID)
	require.Equal(t, http.StatusOK, run.Code)
	assert.Contains(t, run.Body.String(), `"file_name":"orgs.csv"`)

	csvRec := get(s, resp.Downloads["csv"])
	require.Equal(t, http.StatusOK, csvRec.Code)
	assert.Equal(t, `attachment; filename=verified_enriched_data.csv`, csvRec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(csvRec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Org Name,City,EIN,"), lines[0])
	assert.Contains(t, lines[1], "Jane (CEO) - $100")

	xlsxRec := get(s, resp.Downloads["xlsx"])
	require.Equal(t, http.StatusOK, xlsxRec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsxRec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(xlsxRec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	bad := get(s, "/api/runs/"+resp.ID+"/download?format=pdf")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "INP002", decodeError(t, bad).Code)
}

func TestEnrichAPI_RawBody(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/enrich?filename=orgs.csv", strings.NewReader(orgsCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"file_name":"orgs.csv"`)
}

func TestEnrichAPI_Errors(t *testing.T) {
	tests := []struct {
		name     string
		refDir   func(t *testing.T) string
		env      map[string]string
		do       func(t *testing.T, s *Server) *httptest.ResponseRecorder
		wantCode int
		wantErr  string
	}{
		{
			name:   "missing file field",
			refDir: referenceDir,
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				body, ct := multipartBody(t, "other", "orgs.csv", orgsCSV)
				req := httptest.NewRequest(http.MethodPost, "/api/enrich", body)
				req.Header.Set("Content-Type", ct)
				rec := httptest.NewRecorder()
				s.Router().ServeHTTP(rec, req)
				return rec
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INP005",
		},
		{
			name:   "empty raw body",
			refDir: referenceDir,
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enrich", nil))
				return rec
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INP005",
		},
		{
			name:   "header only",
			refDir: referenceDir,
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return upload(t, s, "/api/enrich", "orgs.csv", "Org Name\n")
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INP004",
		},
		{
			name:   "too large",
			refDir: referenceDir,
			env:    map[string]string{"UPLOAD_MAX_FILE_SIZE": "10"},
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return upload(t, s, "/api/enrich", "orgs.csv", orgsCSV)
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "INP001",
		},
		{
			name:   "unsupported extension",
			refDir: referenceDir,
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return upload(t, s, "/api/enrich", "orgs.pdf", orgsCSV)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INP002",
		},
		{
			name: "reference unavailable",
			refDir: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing")
			},
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return upload(t, s, "/api/enrich", "orgs.csv", orgsCSV)
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "CFG001",
		},
		{
			name:   "unknown run",
			refDir: referenceDir,
			do: func(t *testing.T, s *Server) *httptest.ResponseRecorder {
				return get(s, "/api/runs/does-not-exist")
			},
			wantCode: http.StatusNotFound,
			wantErr:  "RUN002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.refDir(t), tt.env)

			rec := tt.do(t, s)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"too large", fmt.Errorf("%w: 20 bytes exceeds limit of 10", core.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"too large mentioned in other input error", fmt.Errorf("%w: cell says file too large", core.ErrInput), http.StatusBadRequest},
		{"input", fmt.Errorf("%w: no file provided", core.ErrInput), http.StatusBadRequest},
		{"rate limited", errRateLimited, http.StatusTooManyRequests},
		{"busy", core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{"reference", fmt.Errorf("load: %w", reference.ErrConfiguration), http.StatusServiceUnavailable},
		{"unknown run", core.ErrRunNotFound, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestPreviewAPI(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := upload(t, s, "/api/preview", "orgs.csv", orgsCSV)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview core.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, "Org Name", preview.NameColumn.Column)
	assert.Equal(t, []string{"Org Name", "City"}, preview.Columns)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Len(t, preview.Rows, 3)
}

func TestEnrichPage(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := upload(t, s, "/enrich", "orgs.csv", orgsCSV)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Results for orgs.csv")
	assert.Contains(t, body, "Original data")
	assert.Contains(t, body, "Download XLSX")
	assert.Contains(t, body, "redcross.org")
}

func TestEnrichPage_ErrorRendersHTML(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	rec := upload(t, s, "/enrich", "orgs.csv", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "INP004")
}

func TestEnrichRateLimit(t *testing.T) {
	s := newTestServer(t, referenceDir(t), map[string]string{"RATE_LIMIT_ENRICH": "1"})

	first := upload(t, s, "/api/preview", "orgs.csv", orgsCSV)
	require.Equal(t, http.StatusOK, first.Code)

	second := upload(t, s, "/api/preview", "orgs.csv", orgsCSV)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, second).Code)

	assert.Equal(t, http.StatusOK, get(s, "/healthz").Code, "other routes are not affected")
}

func TestReferenceEndpoints(t *testing.T) {
	s := newTestServer(t, referenceDir(t), nil)

	before := get(s, "/api/reference")
	require.Equal(t, http.StatusOK, before.Code)
	var st reference.Status
	require.NoError(t, json.Unmarshal(before.Body.Bytes(), &st))
	assert.False(t, st.Loaded)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reference/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Loaded)
	require.NotNil(t, st.Info)
	assert.Equal(t, 1, st.Info.Records)
}

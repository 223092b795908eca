package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/logging"
	"github.com/JonMunkholm/orgenrich/internal/table"
	"github.com/JonMunkholm/orgenrich/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers. The exact limit is enforced by the service.
const multipartOverhead = 1 << 20

// EnrichResponse is returned by POST /api/enrich.
type EnrichResponse struct {
	*core.Run
	Downloads map[string]string `json:"downloads"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status          string                `json:"status"`
	ReferenceLoaded bool                  `json:"reference_loaded"`
	Runs            core.RunLimiterStatus `json:"runs"`
	StoredRuns      int                   `json:"stored_runs"`
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.UploadPage(templates.UploadData{
		MaxFileMB: s.cfg.Upload.MaxFileSize >> 20,
		Reference: s.service.ReferenceStatus(),
	}).Render(r.Context(), w)
}

// handleEnrichPage runs an enrichment from the HTML form and renders the
// result page.
func (s *Server) handleEnrichPage(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// The enrichment reports any parse problem, so a preview failure is
	// only logged.
	preview, err := s.service.Preview(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context()).Debug("preview failed", "error", err)
	}

	run, err := s.service.Enrich(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.ResultPage(run, preview).Render(r.Context(), w)
}

// handleEnrich runs an enrichment and returns the run summary.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	run, err := s.service.Enrich(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	base := "/api/runs/" + run.ID + "/download?format="
	writeJSON(w, r, http.StatusOK, EnrichResponse{
		Run: run,
		Downloads: map[string]string{
			string(table.FormatCSV):  base + string(table.FormatCSV),
			string(table.FormatXLSX): base + string(table.FormatXLSX),
		},
	})
}

// handlePreview returns the detected name column and the leading rows of an
// upload without enriching it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview, err := s.service.Preview(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, preview)
}

// handleGetRun returns a stored run summary.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// handleDownload streams a run's enriched table as CSV (default) or XLSX.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format, err := table.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": core.DownloadName(format),
	}))

	if err := table.Write(w, run.Table, format); err != nil {
		// Headers are already sent.
		logging.FromContext(r.Context()).Error("download failed", "run_id", run.ID, "format", format, "error", err)
	}
}

// handleReference reports the reference dataset status.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ReferenceStatus())
}

// handleReloadReference re-reads the reference dataset.
func (s *Server) handleReloadReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Reference.LoadTimeout)
	defer cancel()

	st, err := s.service.ReloadReference(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleHealth reports liveness and run slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:          "ok",
		ReferenceLoaded: s.service.ReferenceStatus().Loaded,
		Runs:            s.service.LimiterStatus(),
		StoredRuns:      s.service.ActiveRuns(),
	})
}

// readUpload extracts the uploaded file. Multipart forms carry it in the
// "file" field; any other body is taken as the file itself, named by the
// "filename" query parameter.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.Request, error) {
	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return core.Request{}, uploadError(err, limit)
		}
		if len(data) == 0 {
			return core.Request{}, fmt.Errorf("%w: no file provided", core.ErrInput)
		}
		name := path.Base(r.URL.Query().Get("filename"))
		if name == "." || name == "/" {
			name = "upload.csv"
		}
		return core.Request{FileName: name, Data: data}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return core.Request{}, uploadError(err, limit)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Request{}, fmt.Errorf("%w: no file provided", core.ErrInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.Request{}, uploadError(err, limit)
	}
	return core.Request{FileName: header.Filename, Data: data}, nil
}

func uploadError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: exceeds limit of %d bytes", core.ErrTooLarge, limit)
	}
	return fmt.Errorf("%w: invalid upload: %v", core.ErrInput, err)
}

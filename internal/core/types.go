package core

import (
	"time"

	"github.com/JonMunkholm/orgenrich/internal/columns"
	"github.com/JonMunkholm/orgenrich/internal/dedupe"
	"github.com/JonMunkholm/orgenrich/internal/table"
)

// PreviewRows is how many leading rows a preview shows.
const PreviewRows = 5

// DownloadBaseName is the file name offered for enriched output, without
// extension.
const DownloadBaseName = "verified_enriched_data"

// Request is one uploaded file.
type Request struct {
	FileName string
	Data     []byte
}

// Warning is a recovered problem reported alongside a successful run.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnReferenceUnavailable = "reference_unavailable"
	WarnMissingEIN           = "missing_ein_column"
	WarnNoEINs               = "no_eins"
)

// RunStats summarizes a run stage by stage.
type RunStats struct {
	InputRows        int          `json:"input_rows"`
	ReferenceRecords int          `json:"reference_records"`
	MatchedRows      int          `json:"matched_rows"`
	JoinedRows       int          `json:"joined_rows"`
	LookupsRequested int          `json:"lookups_requested"`
	LookupsFound     int          `json:"lookups_found"`
	Dedupe           dedupe.Stats `json:"dedupe"`
	OutputRows       int          `json:"output_rows"`
}

// Run is a completed enrichment. Runs are kept in memory until they expire.
type Run struct {
	ID         string            `json:"id"`
	FileName   string            `json:"file_name"`
	NameColumn columns.Inference `json:"name_column"`
	EINColumn  string            `json:"ein_column"`
	Warnings   []Warning         `json:"warnings"`
	Stats      RunStats          `json:"stats"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	ExpiresAt  time.Time         `json:"expires_at"`

	Table *table.Table `json:"-"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Preview is the parsed upload before enrichment.
type Preview struct {
	FileName   string            `json:"file_name"`
	Columns    []string          `json:"columns"`
	NameColumn columns.Inference `json:"name_column"`
	TotalRows  int               `json:"total_rows"`
	Rows       [][]string        `json:"rows"`
}

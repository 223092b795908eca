package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/orgenrich/internal/columns"
	"github.com/JonMunkholm/orgenrich/internal/dedupe"
	"github.com/JonMunkholm/orgenrich/internal/logging"
	"github.com/JonMunkholm/orgenrich/internal/match"
	"github.com/JonMunkholm/orgenrich/internal/propublica"
	"github.com/JonMunkholm/orgenrich/internal/table"
)

// parse decodes the upload. Every failure is an ErrInput.
func (s *Service) parse(req Request) (*table.Table, error) {
	if len(req.Data) == 0 {
		return nil, inputErrorf("%v", table.ErrEmpty)
	}
	if int64(len(req.Data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(req.Data), s.opts.MaxUploadBytes)
	}

	name := req.FileName
	if name == "" {
		name = "upload.csv"
	}
	t, err := table.Read(name, bytes.NewReader(req.Data))
	if err != nil {
		return nil, inputErrorf("%v", err)
	}
	if t.Len() == 0 {
		return nil, inputErrorf("%v: no data rows", table.ErrEmpty)
	}
	return t, nil
}

func inferNameColumn(t *table.Table) (columns.Inference, error) {
	inf, ok := columns.Infer(t.Columns)
	if !ok {
		return inf, inputErrorf("no columns found for organization names")
	}
	return inf, nil
}

// process runs parse, match, lookup, merge and dedupe, filling in run.
func (s *Service) process(ctx context.Context, req Request, run *Run) error {
	logger := logging.FromContext(ctx)

	upload, err := s.parse(req)
	if err != nil {
		return err
	}
	run.Stats.InputRows = upload.Len()

	inf, err := inferNameColumn(upload)
	if err != nil {
		return err
	}
	run.NameColumn = inf
	logger.Info("name column detected", "column", inf.Column, "keyword", inf.Keyword, "score", inf.Score, "fallback", inf.Fallback)

	// Local match.
	joined := upload
	einColumn, revenueColumn := "", ""

	ds, err := s.ref.Dataset(ctx)
	switch {
	case err != nil && s.opts.ReferenceRequired:
		return err
	case err != nil:
		run.warn(WarnReferenceUnavailable, "Reference data is not available; local EIN matching was skipped")
		logger.Warn("continuing without reference data", "error", err)
	default:
		res := match.Join(upload, inf.Column, ds)
		joined = res.Table
		einColumn, revenueColumn = res.EINColumn, res.RevenueColumn
		run.Stats.ReferenceRecords = ds.Len()
		run.Stats.MatchedRows = res.MatchedRows
		logger.Info("local match complete", "matched_rows", res.MatchedRows, "joined_rows", joined.Len())
	}
	run.Stats.JoinedRows = joined.Len()

	if einColumn == "" {
		einColumn = match.ColumnEIN
		if !joined.Has(einColumn) {
			joined = joined.Clone()
			joined.AddColumn(einColumn, table.Text(propublica.NotAvailable))
			run.warn(WarnMissingEIN, "EIN column was missing after matching; it was filled with "+propublica.NotAvailable)
		}
	}
	run.EINColumn = einColumn

	// Remote lookup.
	eins := distinctEINs(joined, einColumn)
	results := map[string]*propublica.Organization{}
	if len(eins) == 0 {
		run.warn(WarnNoEINs, "No EINs available; remote enrichment was skipped")
	} else {
		batch := s.enricher.FetchAll(ctx, eins)
		results = batch.Results()
		run.Stats.LookupsRequested = len(batch)
		run.Stats.LookupsFound = len(results)
	}
	merged := mergeEnrichment(joined, einColumn, results)

	// Deduplicate.
	out, stats := dedupe.Dedupe(merged, dedupe.Keys{
		EIN:     einColumn,
		Name:    inf.Column,
		Revenue: revenueColumn,
	}, dedupe.Options{KeepUnmatched: s.opts.KeepUnmatched})
	run.Stats.Dedupe = stats
	run.Stats.OutputRows = out.Len()
	run.Table = out

	return nil
}

func (r *Run) warn(code, msg string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: msg})
}

// distinctEINs returns the lookup-eligible EINs of column in first-seen order.
func distinctEINs(t *table.Table, column string) []string {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		c := row[idx]
		if !c.Valid || !propublica.Eligible(c.Value) || seen[c.Value] {
			continue
		}
		seen[c.Value] = true
		out = append(out, c.Value)
	}
	return out
}

// mergeEnrichment appends the enrichment columns to a copy of t, joining on
// the EIN in einColumn. Rows without a result get NotAvailable in every
// enrichment column.
func mergeEnrichment(t *table.Table, einColumn string, results map[string]*propublica.Organization) *table.Table {
	out := t.Clone()
	einIdx := out.Index(einColumn)

	start := len(out.Columns)
	for _, f := range propublica.Fields {
		out.Columns = append(out.Columns, out.UniqueName(f))
	}

	for i, row := range out.Rows {
		values := notAvailable
		if einIdx >= 0 && row[einIdx].Valid {
			if org, ok := results[row[einIdx].Value]; ok {
				values = org.Values()
			}
		}
		ext := make([]table.Cell, start, len(out.Columns))
		copy(ext, row)
		for _, v := range values {
			ext = append(ext, table.Text(v))
		}
		out.Rows[i] = ext
	}
	return out
}

var notAvailable = func() []string {
	v := make([]string, len(propublica.Fields))
	for i := range v {
		v[i] = propublica.NotAvailable
	}
	return v
}()

// IsInputError reports whether err aborted a run because of the upload.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInput)
}

// DownloadName returns the file name offered for a run's output.
func DownloadName(f table.Format) string {
	return fmt.Sprintf("%s.%s", DownloadBaseName, strings.ToLower(string(f)))
}

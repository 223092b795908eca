package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/reference"
)

// ResultRows is how many output rows the result page shows inline.
const ResultRows = 50

// UploadData feeds the upload form.
type UploadData struct {
	MaxFileMB int64
	Reference reference.Status
}

// UploadPage is the landing page: reference status plus the upload form.
func UploadPage(data UploadData) templ.Component {
	return page("Organization enrichment", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>Organization enrichment</h1>`); err != nil {
			return err
		}
		if err := referenceCard(w, data.Reference); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, `<div class="card"><form method="post" action="/enrich" enctype="multipart/form-data">`+
			`<p>Upload a CSV or XLSX file with a column of organization names.</p>`+
			`<p><input type="file" name="file" accept=".csv,.xlsx" required></p>`+
			`<p class="muted">Maximum size %d MB. Results are offered as %s.</p>`+
			`<button class="btn" type="submit">Enrich</button></form></div>`,
			data.MaxFileMB, templ.EscapeString(core.DownloadName("csv")))
		return err
	}))
}

func referenceCard(w io.Writer, st reference.Status) error {
	if _, err := io.WriteString(w, `<div class="card"><h2>Reference data</h2><dl>`); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, `<dt>Source</dt><dd>%s</dd>`, templ.EscapeString(st.Source)); err != nil {
		return err
	}
	switch {
	case st.Info != nil:
		if _, err := fmt.Fprintf(w, `<dt>Records</dt><dd>%d</dd><dt>Loaded</dt><dd>%s</dd>`,
			st.Info.Records, st.Info.LoadedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	default:
		if _, err := io.WriteString(w, `<dt>Status</dt><dd>not loaded</dd>`); err != nil {
			return err
		}
	}
	if st.LastError != "" {
		if _, err := fmt.Fprintf(w, `<dt>Last error</dt><dd>%s</dd>`, templ.EscapeString(st.LastError)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</dl></div>`)
	return err
}

// ResultPage shows a finished run: detection, warnings, stats, download
// links and the leading output rows. original may be nil.
func ResultPage(run *core.Run, original *core.Preview) templ.Component {
	return page("Enrichment results", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<h1>Results for %s</h1>`, templ.EscapeString(run.FileName)); err != nil {
			return err
		}

		for _, warn := range run.Warnings {
			if _, err := fmt.Fprintf(w, `<div class="alert warn">%s</div>`, templ.EscapeString(warn.Message)); err != nil {
				return err
			}
		}

		nc := run.NameColumn
		detected := fmt.Sprintf("%s (matched %q, score %d)", nc.Column, nc.Keyword, nc.Score)
		if nc.Fallback {
			detected = nc.Column + " (fallback to first column)"
		}
		st := run.Stats
		if _, err := fmt.Fprintf(w, `<div class="card"><dl>`+
			`<dt>Name column</dt><dd>%s</dd>`+
			`<dt>Rows uploaded</dt><dd>%d</dd>`+
			`<dt>Rows matched locally</dt><dd>%d</dd>`+
			`<dt>Lookups</dt><dd>%d of %d found</dd>`+
			`<dt>Removed duplicates</dt><dd>%d by EIN, %d by name</dd>`+
			`<dt>Rows out</dt><dd>%d</dd>`+
			`<dt>Duration</dt><dd>%s</dd>`+
			`</dl></div>`,
			templ.EscapeString(detected),
			st.InputRows, st.MatchedRows,
			st.LookupsFound, st.LookupsRequested,
			st.Dedupe.DroppedByEIN, st.Dedupe.DroppedByName,
			st.OutputRows,
			run.Duration().Round(time.Millisecond)); err != nil {
			return err
		}

		base := "/api/runs/" + run.ID + "/download"
		if _, err := fmt.Fprintf(w, `<p><a class="btn" href="%s">Download CSV</a> `+
			`<a class="btn secondary" href="%s">Download XLSX</a> `+
			`<a class="btn secondary" href="/">New upload</a></p>`+
			`<p class="muted">Available until %s.</p>`,
			templ.EscapeString(string(templ.URL(base+"?format=csv"))),
			templ.EscapeString(string(templ.URL(base+"?format=xlsx"))),
			run.ExpiresAt.Format(time.Kitchen)); err != nil {
			return err
		}

		if original != nil {
			if err := PreviewTable(original).Render(ctx, w); err != nil {
				return err
			}
		}

		if run.Table == nil {
			return nil
		}
		head := run.Table.Head(ResultRows).Records()
		if _, err := fmt.Fprintf(w, `<h2>Enriched data</h2><p class="muted">Showing %d of %d rows.</p>`,
			len(head)-1, run.Table.Len()); err != nil {
			return err
		}
		return dataTable(w, head[0], head[1:])
	}))
}

// PreviewTable renders the leading rows of an upload before enrichment.
func PreviewTable(p *core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div class="card"><h2>Original data</h2>`+
			`<p class="muted">Name column: %s. Showing %d of %d rows.</p>`,
			templ.EscapeString(p.NameColumn.Column), len(p.Rows), p.TotalRows); err != nil {
			return err
		}
		if err := dataTable(w, p.Columns, p.Rows); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Package templates renders the HTML pages of the web UI as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#0f172a}
main{max-width:72rem;margin:0 auto;padding:2rem}
h1{font-size:1.5rem;margin:0 0 1rem}
h2{font-size:1.125rem;margin:1.5rem 0 .5rem}
.card{background:#fff;border:1px solid #e2e8f0;border-radius:.5rem;padding:1.25rem;margin-bottom:1rem}
.muted{color:#64748b;font-size:.875rem}
.btn{display:inline-block;background:#2563eb;color:#fff;border:0;border-radius:.375rem;padding:.5rem 1rem;text-decoration:none;cursor:pointer}
.btn.secondary{background:#475569}
.alert{border-radius:.375rem;padding:.75rem 1rem;margin-bottom:1rem}
.alert.error{background:#fef2f2;border:1px solid #fecaca;color:#991b1b}
.alert.warn{background:#fffbeb;border:1px solid #fde68a;color:#92400e}
table{border-collapse:collapse;width:100%;font-size:.8125rem}
th,td{border:1px solid #e2e8f0;padding:.375rem .5rem;text-align:left;vertical-align:top}
th{background:#f1f5f9}
dl{display:grid;grid-template-columns:max-content auto;gap:.25rem 1rem;margin:0}
dt{color:#64748b}
`

// page wraps body in the shared document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>%s</title><style>%s</style></head><body><main>`,
			templ.EscapeString(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorAlert renders a dismissable error box with an optional suggested
// action and support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div class="alert error" role="alert"><strong>%s</strong>`, templ.EscapeString(message)); err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<div>%s</div>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		if code != "" {
			if _, err := fmt.Fprintf(w, `<div class="muted">Code: %s</div>`, templ.EscapeString(code)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// ErrorPage is a full page showing an error and a link back to the upload form.
func ErrorPage(message, action, code string) templ.Component {
	alert := ErrorAlert(message, action, code)
	return page("Enrichment failed", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>Enrichment failed</h1>`); err != nil {
			return err
		}
		if err := alert.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<a class="btn secondary" href="/">Back</a>`)
		return err
	}))
}

// dataTable renders a header record followed by rows.
func dataTable(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, `<div style="overflow-x:auto"><table><thead><tr>`); err != nil {
		return err
	}
	for _, h := range header {
		if _, err := fmt.Fprintf(w, `<th>%s</th>`, templ.EscapeString(h)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, `</tr></thead><tbody>`); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := io.WriteString(w, `<tr>`); err != nil {
			return err
		}
		for _, v := range row {
			if _, err := fmt.Fprintf(w, `<td>%s</td>`, templ.EscapeString(v)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tr>`); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</tbody></table></div>`)
	return err
}

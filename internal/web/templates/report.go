// Package templates holds the HTML components served by the web layer.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/boqimport/internal/core"
)

const reportStyle = `<style>
body{font-family:system-ui,sans-serif;margin:2rem;color:#111827}
table{border-collapse:collapse;margin:1rem 0;font-size:.9rem}
th,td{border:1px solid #d1d5db;padding:.3rem .6rem;text-align:left}
th{background:#f3f4f6}
.ok{color:#047857}.fail{color:#b91c1c}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:1rem;border-radius:.4rem}
</style>`

// maxReportRows caps the error, warning and item tables.
const maxReportRows = 200

// Report renders a full HTML page summarizing a finished run.
func Report(runID string, r core.ParseResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		m := r.Metadata
		rates := core.ComputeRates(r)

		status, class := "Success", "ok"
		if !r.Success {
			status, class = "Failed", "fail"
		}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>BOQ import `)
		p.text(m.FileName)
		p.raw(`</title>` + reportStyle + `</head><body>`)
		p.raw(`<h1>BOQ import report</h1><p>Status: <strong class="` + class + `">` + status + `</strong>`)
		if runID != "" {
			p.raw(` &middot; run <code>`)
			p.text(runID)
			p.raw(`</code>`)
		}
		p.raw(`</p>`)

		p.raw(`<table><tbody>`)
		p.row("File", m.FileName)
		p.row("Format", m.DetectedFormat.String())
		p.row("Header row", strconv.Itoa(m.HeaderRow+1))
		p.row("Total rows", strconv.Itoa(m.TotalRows))
		p.row("Processed rows", strconv.Itoa(m.ProcessedRows))
		p.row("Skipped rows", strconv.Itoa(m.SkippedRows))
		p.row("Invalid rows", strconv.Itoa(m.InvalidRows))
		p.row("Items", strconv.Itoa(len(r.Items)))
		p.row("Success rate", fmt.Sprintf("%.1f%%", rates.Success*100))
		p.row("Processing time", fmt.Sprintf("%d ms", m.ProcessingTimeMs))
		p.raw(`</tbody></table>`)

		if len(m.Columns) > 0 {
			p.raw(`<h2>Columns</h2><table><thead><tr><th>Source</th><th>Field</th><th>Matched by</th></tr></thead><tbody>`)
			for _, c := range m.Columns {
				p.cells(c.SourceLabel, c.TargetField, string(c.Source))
			}
			p.raw(`</tbody></table>`)
		}

		if len(r.Errors) > 0 {
			p.raw(`<h2>Errors (` + strconv.Itoa(len(r.Errors)) + `)</h2>`)
			p.raw(`<table><thead><tr><th>Row</th><th>Column</th><th>Value</th><th>Kind</th><th>Message</th><th>Code</th></tr></thead><tbody>`)
			for i, e := range r.Errors {
				if i == maxReportRows {
					break
				}
				p.cells(strconv.Itoa(e.Row), e.Column, e.Value, string(e.Kind), e.Message, core.MapMessage(e.Message).Code)
			}
			p.raw(`</tbody></table>`)
		}

		if len(r.Warnings) > 0 {
			p.raw(`<h2>Warnings (` + strconv.Itoa(len(r.Warnings)) + `)</h2>`)
			p.raw(`<table><thead><tr><th>Row</th><th>Column</th><th>Value</th><th>Kind</th><th>Message</th></tr></thead><tbody>`)
			for i, wn := range r.Warnings {
				if i == maxReportRows {
					break
				}
				p.cells(strconv.Itoa(wn.Row), wn.Column, wn.Value, string(wn.Kind), wn.Message)
			}
			p.raw(`</tbody></table>`)
		}

		if len(r.Items) > 0 {
			p.raw(`<h2>Items</h2><table><thead><tr><th>Line</th><th>Code</th><th>Description</th><th>Qty</th><th>UOM</th><th>Unit price</th><th>Total</th></tr></thead><tbody>`)
			for i, it := range r.Items {
				if i == maxReportRows {
					break
				}
				p.cells(strconv.Itoa(it.LineNumber), it.ItemCode, it.Description,
					formatNumber(&it.Quantity), it.UOM, formatNumber(it.UnitPrice), formatNumber(it.TotalPrice))
			}
			p.raw(`</tbody></table>`)
			if len(r.Items) > maxReportRows {
				p.raw(`<p>Showing the first ` + strconv.Itoa(maxReportRows) + ` items.</p>`)
			}
		}

		p.raw(`</body></html>`)
		return p.err
	})
}

// ErrorAlert renders a coded, user-facing error message.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="alert" role="alert"><strong>`)
		p.text(message)
		p.raw(`</strong>`)
		if action != "" {
			p.raw(`<p>`)
			p.text(action)
			p.raw(`</p>`)
		}
		p.raw(`<small>Code: `)
		p.text(code)
		p.raw(`</small></div>`)
		return p.err
	})
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// printer writes HTML and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) row(label, value string) {
	p.raw(`<tr><th>`)
	p.text(label)
	p.raw(`</th><td>`)
	p.text(value)
	p.raw(`</td></tr>`)
}

func (p *printer) cells(values ...string) {
	p.raw(`<tr>`)
	for _, v := range values {
		p.raw(`<td>`)
		p.text(v)
		p.raw(`</td>`)
	}
	p.raw(`</tr>`)
}

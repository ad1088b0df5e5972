package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"harvestbot/internal/report"
)

// reportTemplate renders the monthly report as a self-contained HTML
// document with inline styles, suitable for email clients.
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"hours": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Label}} Report</title></head>
<body style="font-family: Arial, sans-serif; color: #222; margin: 0; padding: 24px;">
  <h1 style="font-size: 20px;">Project Report &mdash; {{.Label}}</h1>
  <p>Total hours across all tracked groups: <strong>{{hours .TotalHours}}</strong></p>

  <h2 style="font-size: 16px;">Projects</h2>
  <table cellpadding="6" cellspacing="0" style="border-collapse: collapse; width: 100%; font-size: 13px;">
    <tr style="background: #f0f0f0; text-align: left;">
      <th style="border: 1px solid #ccc;">Project</th>
      <th style="border: 1px solid #ccc;">Hours</th>
      <th style="border: 1px solid #ccc;">Billable</th>
      <th style="border: 1px solid #ccc;">Billed</th>
      <th style="border: 1px solid #ccc;">Budget</th>
      <th style="border: 1px solid #ccc;">Remaining</th>
      <th style="border: 1px solid #ccc;">Complete</th>
    </tr>
    {{range .Primary}}
    <tr>
      <td style="border: 1px solid #ccc;">{{.Name}}</td>
      <td style="border: 1px solid #ccc;">{{hours .TotalHours}}</td>
      <td style="border: 1px solid #ccc;">{{hours .BillableHours}}</td>
      <td style="border: 1px solid #ccc;">{{money .BilledAmount}}</td>
      <td style="border: 1px solid #ccc;">{{money .Budget}}</td>
      <td style="border: 1px solid #ccc;">{{money .BudgetRemaining}}</td>
      <td style="border: 1px solid #ccc;">{{pct .BudgetPercentComplete}}</td>
    </tr>
    {{end}}
  </table>

  <h2 style="font-size: 16px;">Hosting &amp; Support</h2>
  <table cellpadding="6" cellspacing="0" style="border-collapse: collapse; width: 100%; font-size: 13px;">
    <tr style="background: #f0f0f0; text-align: left;">
      <th style="border: 1px solid #ccc;">Client</th>
      <th style="border: 1px solid #ccc;">Hours</th>
      <th style="border: 1px solid #ccc;">Billed</th>
      <th style="border: 1px solid #ccc;">Support Budget</th>
      <th style="border: 1px solid #ccc;">Complete</th>
    </tr>
    {{range .HostingSupport}}
    <tr>
      <td style="border: 1px solid #ccc;">{{.Name}}</td>
      <td style="border: 1px solid #ccc;">{{hours .TotalHours}}</td>
      <td style="border: 1px solid #ccc;">{{money .BilledAmount}}</td>
      <td style="border: 1px solid #ccc;">{{money .Budget}}</td>
      <td style="border: 1px solid #ccc;">{{pct .BudgetPercentComplete}}</td>
    </tr>
    {{end}}
  </table>

  <p style="font-size: 11px; color: #888;">Generated {{.GeneratedAt}}</p>
</body>
</html>
`))

// RenderHTML produces the self-contained HTML document for one report.
func RenderHTML(r *report.Report) (string, error) {
	data := struct {
		*report.Report
		GeneratedAt string
	}{
		Report:      r,
		GeneratedAt: time.Now().Format(time.RFC1123),
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

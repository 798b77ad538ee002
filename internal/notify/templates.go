package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; color: #1f2328; }
        .header { padding: 16px; border-radius: 5px; color: white; }
        .ok { background-color: #1a7f37; }
        .bad { background-color: #cf222e; }
        .content { background-color: #f6f8fa; padding: 15px; margin: 20px 0; border-radius: 5px; white-space: pre-wrap; }
        table { border-collapse: collapse; }
        td, th { padding: 6px 12px; border-bottom: 1px solid #d0d7de; text-align: left; }
        .footer { color: #656d76; font-size: 12px; }
    </style>
</head>
<body>
{{template "body" .}}
<p class="footer">Sent by social-agent at {{.SentAt.Format "2006-01-02 15:04 UTC"}}</p>
</body>
</html>`

var (
	publishedTmpl = template.Must(template.Must(template.New("published").Parse(layout)).Parse(`{{define "body"}}
<div class="header ok"><h2>Your {{.Platform}} post is live</h2></div>
<div class="content">{{.Content}}</div>
{{if .URL}}<p><a href="{{.URL}}">View post on {{.Platform}}</a></p>{{end}}
{{end}}`))

	failedTmpl = template.Must(template.Must(template.New("failed").Parse(layout)).Parse(`{{define "body"}}
<div class="header bad"><h2>Your {{.Platform}} post could not be published</h2></div>
<p><strong>Reason:</strong> {{.Reason}}</p>
<div class="content">{{.Content}}</div>
{{if .DashboardURL}}<p><a href="{{.DashboardURL}}">Open the dashboard</a> to reconnect the account or retry.</p>{{end}}
{{end}}`))

	healthTmpl = template.Must(template.Must(template.New("health").Parse(layout)).Parse(`{{define "body"}}
<div class="header bad"><h2>{{len .Unhealthy}} social platform APIs are unhealthy</h2></div>
<table>
<tr><th>Platform</th><th>Status</th><th>Latency</th><th>Error</th></tr>
{{range .Unhealthy}}<tr><td>{{.Platform}}</td><td>{{if .StatusCode}}{{.StatusCode}}{{else}}-{{end}}</td><td>{{.LatencyMs}} ms</td><td>{{.Error}}</td></tr>
{{end}}</table>
{{end}}`))
)

// PostOutcome describes one publish attempt for the user
type PostOutcome struct {
	Platform     string
	Content      string
	URL          string
	Reason       string
	DashboardURL string
}

// PlatformStatus is one row of a health alert
type PlatformStatus struct {
	Platform   string
	StatusCode int
	LatencyMs  int64
	Error      string
}

type view struct {
	PostOutcome
	Unhealthy []PlatformStatus
	SentAt    time.Time
}

func render(t *template.Template, v view) (string, error) {
	v.SentAt = time.Now().UTC()
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// PostPublished renders the success email
func PostPublished(to string, o PostOutcome) (Message, error) {
	html, err := render(publishedTmpl, view{PostOutcome: o})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("Published to %s", o.Platform), HTML: html}, nil
}

// PostFailed renders the failure email
func PostFailed(to string, o PostOutcome) (Message, error) {
	html, err := render(failedTmpl, view{PostOutcome: o})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("Failed to publish to %s", o.Platform), HTML: html}, nil
}

// HealthAlert renders the operator alert for unhealthy platforms
func HealthAlert(to string, unhealthy []PlatformStatus) (Message, error) {
	html, err := render(healthTmpl, view{Unhealthy: unhealthy})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("[alert] %d social platform APIs unhealthy", len(unhealthy)),
		HTML:    html,
	}, nil
}

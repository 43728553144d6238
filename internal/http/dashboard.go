package http

import (
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/fusiond/internal/state"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>fusiond</title>
<style>
body { font-family: ui-monospace, monospace; background: #0d1117; color: #c9d1d9; margin: 2rem; }
h1 { color: #58a6ff; font-size: 1.3rem; }
h2 { color: #8b949e; font-size: 1rem; margin-top: 1.5rem; }
.summary { background: #161b22; border-left: 3px solid #58a6ff; padding: 0.75rem 1rem; }
ul { list-style: none; padding-left: 0; }
li { padding: 0.15rem 0; }
.meta { color: #8b949e; font-size: 0.85rem; }
.device { color: #7ee787; }
</style>
</head>
<body>
<h1>fusiond</h1>
<div class="summary">{{.Summary}}</div>

<h2>Fused Detail</h2>
<ul>{{range .Detail}}<li>{{.}}</li>{{end}}</ul>

<h2>Recommendations</h2>
<ul>{{range .Recommendations}}<li>{{.}}</li>{{else}}<li class="meta">none yet</li>{{end}}</ul>

<h2>Devices</h2>
<ul>{{range .Devices}}<li><span class="device">{{.Kind}}</span> <span class="meta">last seen {{.ReceivedAt}}</span></li>{{else}}<li class="meta">no producers reporting</li>{{end}}</ul>

<p class="meta">events: {{.Events}} | last fusion latency: {{.Latency}} | updated: {{.Updated}}</p>
</body>
</html>
`))

type dashboardDevice struct {
	Kind       string
	ReceivedAt string
}

type dashboardData struct {
	Summary         string
	Detail          []string
	Recommendations []string
	Devices         []dashboardDevice
	Events          uint64
	Latency         time.Duration
	Updated         string
}

// handleDashboard renders a human-readable view of the world state.
func (s *Server) handleDashboard(c echo.Context) error {
	snap := s.service.Snapshot()

	data := dashboardData{
		Summary:         snap.FusedSummary,
		Detail:          snap.FusedDetail,
		Recommendations: snap.Recommendations,
		Devices:         sortedDevices(snap),
		Events:          snap.EventsProcessed,
		Latency:         snap.Latency,
	}
	if !snap.LastUpdated.IsZero() {
		data.Updated = snap.LastUpdated.Format(time.RFC3339)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return dashboardTmpl.Execute(c.Response(), data)
}

func sortedDevices(snap state.WorldState) []dashboardDevice {
	kinds := make([]string, 0, len(snap.Devices))
	for kind := range snap.Devices {
		kinds = append(kinds, kind)
	}
	// Stable order keeps the refresh from reshuffling rows.
	sort.Strings(kinds)

	devices := make([]dashboardDevice, 0, len(kinds))
	for _, kind := range kinds {
		devices = append(devices, dashboardDevice{
			Kind:       kind,
			ReceivedAt: snap.Devices[kind].ReceivedAt.Format(time.RFC3339),
		})
	}
	return devices
}

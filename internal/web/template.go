package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/audio-remote/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"volts": func(v float64) string {
		return fmt.Sprintf("%.2fV", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Audio Remote</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.low { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Audio Remote</h1>

<h2>Peer</h2>
<table>
<tr><th>WebSocket</th><td class="{{if .PeerAttached}}connected{{else}}disconnected{{end}}">{{if .PeerAttached}}connected{{else}}none{{end}}</td></tr>
{{if .PeerAttached}}<tr><th>Peer</th><td>{{.Peer}}</td></tr>{{end}}
<tr><th>Next sequence</th><td>{{.NextSeq}}</td></tr>
</table>

<h2>Buttons</h2>
<table>
{{range .Channels}}<tr><th>{{.ID}}</th><td class="{{if eq (printf "%s" .State) "PRESSED"}}pressed{{else}}released{{end}}">{{.State}}{{if .LongPressFired}} (repeating){{end}}</td></tr>
{{end}}</table>

<h2>Power</h2>
<table>
<tr><th>State</th><td>{{.Power}}</td></tr>
<tr><th>Battery</th><td{{if .LowBattery}} class="low"{{end}}>{{if .BatteryKnown}}{{volts .Battery}}{{if .LowBattery}} (low){{end}}{{else}}unknown{{end}}</td></tr>
<tr><th>Idle</th><td>{{duration .IdleFor}}{{if .Config.IdleTimeoutMs}} of {{.Config.IdleTimeoutMs}}ms{{end}}</td></tr>
</table>

<h2>Outcomes</h2>
<table>
<tr><th>Sent</th><td>{{.Counts.Sent}}</td></tr>
<tr><th>Throttled</th><td>{{.Counts.Throttled}}</td></tr>
<tr><th>No peer</th><td>{{.Counts.NoPeer}}</td></tr>
<tr><th>Overflow</th><td>{{.Counts.Overflow}}</td></tr>
<tr><th>Send failed</th><td>{{.Counts.SendFailed}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else if .Config.Broker}}disconnected{{else}}disabled{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Network}}<tr><th>IP</th><td>{{.Network.IP}}</td></tr>
<tr><th>RSSI</th><td>{{.Network.RSSI}} dBm</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .UptimeFor}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Repeat</th><td>{{.Config.RepeatMs}}ms</td></tr>
<tr><th>Min interval</th><td>{{.Config.MinIntervalMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.Listen}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		UptimeFor time.Duration
		IdleFor   time.Duration
	}{
		Snapshot:  snap,
		UptimeFor: snap.Uptime(),
		IdleFor:   snap.Idle(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("web: rendering status page")
	}
}

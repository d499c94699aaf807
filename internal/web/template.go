package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/doorbell-pi/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
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
	"rfc3339": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Doorbell</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ringing { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Doorbell{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Chime</th><td id="chime" class="{{if .Ringing}}ringing{{else}}idle{{end}}">{{if .Ringing}}RINGING{{else}}IDLE{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Last press</th><td id="last-press">{{if .LastPress.Time.IsZero}}never{{else}}{{rfc3339 .LastPress.Time}} ({{.LastPress.Source}}){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if eq .Config.Input "flic"}}<tr><th>flicd</th><td class="{{if .RemoteConnected}}connected{{else}}disconnected{{end}}">{{if .RemoteConnected}}connected{{else}}disconnected{{end}} ({{.Config.FlicHost}})</td></tr>
<tr><th>Button</th><td>{{.Config.Button}}</td></tr>{{end}}
</table>

<h2>Presses</h2>
<table>
<tr><th>Rung</th><td id="presses">{{.Counts.Presses}}</td></tr>
<tr><th>Ignored while ringing</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Ring failures</th><td>{{.Counts.Failed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{rfc3339 .StartTime}}</td></tr>
<tr><th>Input</th><td>{{.Config.Input}}</td></tr>
<tr><th>Pattern</th><td>{{.Config.Pattern}} ({{.Config.PulseMs}}ms pulse)</td></tr>
{{if eq .Config.Input "gpio"}}<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Minimum press</th><td>{{.Config.MinTriggerMs}}ms</td></tr>{{end}}
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var lastEl = document.getElementById("last-press");
  var countEl = document.getElementById("presses");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.doorbell) {
          lastEl.textContent = msg.doorbell.timestamp + " (" + msg.doorbell.source + ")";
          countEl.textContent = String(parseInt(countEl.textContent, 10) + 1);
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) {
	// Template methods cannot take the snapshot's computed values directly.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ready  bool
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ready:    snap.Ready(),
		Live:     live,
	}
	indexTmpl.Execute(w, data)
}

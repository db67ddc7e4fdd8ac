package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
	"github.com/ghost-in-the-sushi/efficio-webapp/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() efficio.MetricsSnapshot
	AuditDroppedByKind() map[efficio.AuditKind]uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from engine.
func NewPrometheusExporter(engine *efficio.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from any
// snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns every counter, the hash latency histogram and the audit
// drop counter. It returns "" while metrics are disabled and nothing was
// dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDroppedByKind()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && !anyDropped(dropped) {
		return ""
	}

	var w exposition
	w.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		w.sample(def.Name, "", "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
	}

	for _, def := range internaldefs.HistogramDefs {
		h := snapshot.Histograms[def.ID]
		cumulative := internaldefs.Cumulative(h, def.Bounds)

		w.family(def.Name, def.Help, "histogram")
		for i, n := range cumulative {
			w.sample(def.Name+"_bucket", "le", internaldefs.LeLabel(def.Bounds, i), strconv.FormatUint(n, 10))
		}
		w.sample(def.Name+"_sum", "", "", internaldefs.Seconds(h.Sum))
		w.sample(def.Name+"_count", "", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	}

	w.family(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	for _, kind := range efficio.AuditKinds() {
		w.sample(internaldefs.AuditDroppedName, "kind", kind.String(), strconv.FormatUint(dropped[kind], 10))
	}

	return w.String()
}

func anyDropped(dropped map[efficio.AuditKind]uint64) bool {
	for _, n := range dropped {
		if n > 0 {
			return true
		}
	}
	return false
}

// exposition accumulates text format lines.
type exposition struct {
	strings.Builder
}

func (w *exposition) family(name, help, kind string) {
	w.WriteString("# HELP ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(escapeHelp(help))
	w.WriteString("\n# TYPE ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(kind)
	w.WriteByte('\n')
}

// sample writes one line. An empty label name writes no label set.
func (w *exposition) sample(name, label, value, v string) {
	w.WriteString(name)
	if label != "" {
		w.WriteByte('{')
		w.WriteString(label)
		w.WriteString(`="`)
		w.WriteString(value)
		w.WriteString(`"}`)
	}
	w.WriteByte(' ')
	w.WriteString(v)
	w.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

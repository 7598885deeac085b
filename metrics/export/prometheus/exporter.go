package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

// MetricsSource is satisfied by *goAuthClient.Manager.
type MetricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders manager metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter that reads from manager.
func NewPrometheusExporter(manager *goAuthClient.Manager) *PrometheusExporter {
	return &PrometheusExporter{source: manager}
}

// NewPrometheusExporterFromSource creates an exporter from any [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves [PrometheusExporter.Render].
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It returns "" when metrics are
// disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.Cumulative(raw))
	}
	writeCounter(&b, "goauthclient_audit_dropped_total", "Audit events dropped by dispatcher backpressure.", dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [internaldefs.BucketCount]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[internaldefs.BucketCount-1], 10))
	b.WriteByte('\n')

	// Only bucket counts are kept in memory.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}

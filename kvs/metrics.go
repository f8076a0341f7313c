package kvs

import (
	"fmt"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// handleMetrics are the per-file counters kept in the Registry's metric set.
type handleMetrics struct {
	set  *metrics.Set
	path string

	creates *metrics.Counter
	reads   *metrics.Counter
	deletes *metrics.Counter
	expired *metrics.Counter
	flushes *metrics.Counter
	sweeps  *metrics.Counter
}

func newHandleMetrics(set *metrics.Set, path string) *handleMetrics {
	m := &handleMetrics{set: set, path: path}
	m.creates = m.counter("ttlkv_creates_total", "")
	m.reads = m.counter("ttlkv_reads_total", "")
	m.deletes = m.counter("ttlkv_deletes_total", "")
	m.expired = m.counter("ttlkv_expired_rows_total", "")
	m.flushes = m.counter("ttlkv_flushes_total", "")
	m.sweeps = m.counter("ttlkv_sweeps_total", "")
	return m
}

func (m *handleMetrics) counter(name, extraLabels string) *metrics.Counter {
	return m.set.GetOrCreateCounter(fmt.Sprintf("%s{path=%s%s}", name, strconv.Quote(m.path), extraLabels))
}

// failed counts an operation that returned err, labelled by error code.
func (m *handleMetrics) failed(op string, err error) {
	if err == nil {
		return
	}
	labels := fmt.Sprintf(",op=%s,code=%s", strconv.Quote(op), strconv.Quote(CodeOf(err).String()))
	m.counter("ttlkv_errors_total", labels).Inc()
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killfeedsc/killfeed-go/internal/linesource"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LineRead(linesource.LogPosition{Offset: 42})
	m.LineRead(linesource.LogPosition{Offset: 84})
	m.EventParsed("kill")
	m.EventParsed("kill")
	m.EventParsed("death")
	m.EventDropped()
	m.EventDeduplicated()
	m.MessageSent()
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected("write_failed")
	m.SourceStateChanged(linesource.Searching, linesource.Streaming)
	m.SourceStateChanged(linesource.Streaming, linesource.Recovering)
	m.SourceStateChanged(linesource.Recovering, linesource.Streaming)

	assert.Equal(t, 2.0, gather(t, reg, "killfeed_lines_read_total"))
	assert.Equal(t, 84.0, gather(t, reg, "killfeed_source_offset_bytes"))
	assert.Equal(t, 2.0, gather(t, reg, "killfeed_events_parsed_total", "type", "kill"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_events_parsed_total", "type", "death"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_events_dropped_total"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_events_deduplicated_total"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_messages_sent_total"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_clients_connected"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_clients_dropped_total", "reason", "write_failed"))
	assert.Equal(t, float64(linesource.Streaming), gather(t, reg, "killfeed_source_state"))
	assert.Equal(t, 1.0, gather(t, reg, "killfeed_source_rotations_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	for _, f := range families {
		assert.Contains(t, f.GetName(), "killfeed_")
	}
}

// gather returns the value of the counter or gauge name with the given
// label name/value pairs.
func gather(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LineRead(linesource.LogPosition{})
		m.EventParsed("kill")
		m.EventDropped()
		m.EventDeduplicated()
		m.MessageSent()
		m.ClientConnected()
		m.ClientDisconnected("closed")
		m.SourceStateChanged(linesource.Searching, linesource.Streaming)
	})
}

func TestNew_UnregisteredWithNilRegistry(t *testing.T) {
	// Two instances without a registry must not collide.
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}

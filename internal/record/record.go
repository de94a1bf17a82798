package record

import "time"

// Kind identifies which probe produced a measurement.
type Kind string

const (
	KindBandwidth Kind = "bandwidth"
	KindLatency   Kind = "latency"
)

// Measurement names used when writing points to the store.
const (
	BandwidthMeasurement = "internet_speed"
	LatencyMeasurement   = "ping_results"
)

// Measurement is one canonical probe result, ready for the sink.
// Field values are numeric, string, or boolean. Tags are always strings.
// Instances are built per cycle and not retained after the write returns.
type Measurement struct {
	Kind      Kind
	Timestamp time.Time
	Fields    map[string]interface{}
	Tags      map[string]string
}

// Name returns the store measurement name for the record's kind.
func (m Measurement) Name() string {
	if m.Kind == KindLatency {
		return LatencyMeasurement
	}
	return BandwidthMeasurement
}

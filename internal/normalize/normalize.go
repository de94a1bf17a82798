package normalize

import (
	"fmt"
	"time"

	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/record"
)

// Enricher adds optional fields derived from the probe's external IP.
type Enricher interface {
	Annotate(fields map[string]interface{}, externalIP string)
}

// Normalizer converts raw probe results into canonical measurement
// records: named fields, correct units, defaulted optionals.
type Normalizer struct {
	clock    func() time.Time
	enricher Enricher
}

// NewNormalizer builds a normalizer. clock may be nil (wall clock);
// enricher may be nil (no enrichment).
func NewNormalizer(clock func() time.Time, enricher Enricher) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{clock: clock, enricher: enricher}
}

func (n *Normalizer) Normalize(res probe.Result) (record.Measurement, error) {
	switch r := res.(type) {
	case *probe.BandwidthResult:
		return n.normalizeBandwidth(r), nil
	case *probe.LatencyResult:
		return n.normalizeLatency(r), nil
	default:
		return record.Measurement{}, fmt.Errorf("unsupported probe result type %T", res)
	}
}

func (n *Normalizer) normalizeBandwidth(res *probe.BandwidthResult) record.Measurement {
	p := res.Payload

	// bytes/sec reported by the CLI, stored as megabits/sec.
	packetLoss := 0.0
	if p.PacketLoss != nil {
		packetLoss = *p.PacketLoss
	}

	fields := map[string]interface{}{
		"ping_latency": p.Ping.Latency,
		"ping_jitter":  p.Ping.Jitter,
		"ping_low":     p.Ping.Low,
		"ping_high":    p.Ping.High,

		"download_bandwidth_mbps": p.Download.Bandwidth * 8 / 1e6,
		"download_bytes":          p.Download.Bytes,
		"download_elapsed":        p.Download.Elapsed,
		"download_latency_iqm":    p.Download.Latency.IQM,
		"download_latency_low":    p.Download.Latency.Low,
		"download_latency_high":   p.Download.Latency.High,
		"download_latency_jitter": p.Download.Latency.Jitter,

		"upload_bandwidth_mbps": p.Upload.Bandwidth * 8 / 1e6,
		"upload_bytes":          p.Upload.Bytes,
		"upload_elapsed":        p.Upload.Elapsed,
		"upload_latency_iqm":    p.Upload.Latency.IQM,
		"upload_latency_low":    p.Upload.Latency.Low,
		"upload_latency_high":   p.Upload.Latency.High,
		"upload_latency_jitter": p.Upload.Latency.Jitter,

		"packet_loss": packetLoss,
		"isp":         p.ISP,

		"internal_ip": p.Interface.InternalIP,
		"external_ip": p.Interface.ExternalIP,
		"is_vpn":      p.Interface.IsVPN,

		"server_id":       p.Server.ID,
		"server_host":     p.Server.Host,
		"server_name":     p.Server.Name,
		"server_location": p.Server.Location,
		"server_country":  p.Server.Country,
		"server_ip":       p.Server.IP,

		"result_id":  p.Result.ID,
		"result_url": p.Result.URL,
	}
	if n.enricher != nil && p.Interface.ExternalIP != "" {
		n.enricher.Annotate(fields, p.Interface.ExternalIP)
	}

	return record.Measurement{
		Kind:      record.KindBandwidth,
		Timestamp: n.clock().UTC(),
		Fields:    fields,
	}
}

func (n *Normalizer) normalizeLatency(res *probe.LatencyResult) record.Measurement {
	success := 0
	fields := map[string]interface{}{}
	if res.Success {
		success = 1
		fields["response_time"] = res.ResponseTimeMs
	}
	fields["success"] = success

	tags := map[string]string{"target": res.Target}
	if res.Iface != "" {
		tags["iface"] = res.Iface
	}

	return record.Measurement{
		Kind:      record.KindLatency,
		Timestamp: res.SentAt.UTC(),
		Fields:    fields,
		Tags:      tags,
	}
}

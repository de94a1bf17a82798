package sink

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
)

// Sink is the persistence boundary for measurement records.
type Sink interface {
	Write(ctx context.Context, m record.Measurement) error
}

// InfluxSink appends records to InfluxDB, one point per write, no
// batching. The client is built once at startup and lives until Close;
// only the write itself is scoped per call. Delivery is best-effort:
// a failed write is logged and the record dropped, the next cycle being
// the only retry path.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger util.Logger
}

func NewInfluxSink(cfg config.InfluxConfig, logger util.Logger) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
	}
}

func (s *InfluxSink) Write(ctx context.Context, m record.Measurement) error {
	point := influxdb2.NewPoint(m.Name(), m.Tags, m.Fields, m.Timestamp)
	if err := s.write.WritePoint(ctx, point); err != nil {
		s.logger.Error("influx write failed", "measurement", m.Name(), "error", err)
		return err
	}
	s.logger.Debug("point written", "measurement", m.Name(), "fields", len(m.Fields))
	return nil
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

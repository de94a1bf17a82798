package geoip

import (
	"fmt"
	"net"

	"github.com/netpulse/netpulse/internal/util"
	"github.com/oschwald/maxminddb-golang"
)

// Resolver annotates bandwidth records with the country and city of the
// measured external IP, looked up from a local MaxMind database. Lookup
// failures are silent: enrichment is strictly optional.
type Resolver struct {
	reader *maxminddb.Reader
	logger util.Logger
}

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

func Open(path string, logger util.Logger) (*Resolver, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{reader: reader, logger: logger}, nil
}

func (r *Resolver) Annotate(fields map[string]interface{}, externalIP string) {
	if r.reader == nil {
		return
	}
	ip := net.ParseIP(externalIP)
	if ip == nil {
		return
	}
	var rec cityRecord
	if err := r.reader.Lookup(ip, &rec); err != nil {
		r.logger.Debug("geoip lookup failed", "ip", externalIP, "error", err)
		return
	}
	if rec.Country.ISOCode != "" {
		fields["external_country"] = rec.Country.ISOCode
	}
	if name := rec.City.Names["en"]; name != "" {
		fields["external_city"] = name
	}
}

func (r *Resolver) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

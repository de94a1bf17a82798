package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
)

// TransferStats is one direction of a speedtest run. Bandwidth is in
// bytes per second as reported by the CLI.
type TransferStats struct {
	Bandwidth float64 `json:"bandwidth"`
	Bytes     int64   `json:"bytes"`
	Elapsed   int64   `json:"elapsed"`
	Latency   struct {
		IQM    float64 `json:"iqm"`
		Low    float64 `json:"low"`
		High   float64 `json:"high"`
		Jitter float64 `json:"jitter"`
	} `json:"latency"`
}

// SpeedtestPayload mirrors the CLI's --format=json document.
type SpeedtestPayload struct {
	Ping struct {
		Jitter  float64 `json:"jitter"`
		Latency float64 `json:"latency"`
		Low     float64 `json:"low"`
		High    float64 `json:"high"`
	} `json:"ping"`
	Download   TransferStats `json:"download"`
	Upload     TransferStats `json:"upload"`
	PacketLoss *float64      `json:"packetLoss"`
	ISP        string        `json:"isp"`
	Interface  struct {
		InternalIP string `json:"internalIp"`
		ExternalIP string `json:"externalIp"`
		IsVPN      bool   `json:"isVpn"`
	} `json:"interface"`
	Server struct {
		ID       int64  `json:"id"`
		Host     string `json:"host"`
		Name     string `json:"name"`
		Location string `json:"location"`
		Country  string `json:"country"`
		IP       string `json:"ip"`
	} `json:"server"`
	Result struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"result"`
}

// BandwidthResult is the raw outcome of one speedtest invocation.
type BandwidthResult struct {
	Payload SpeedtestPayload
}

func (*BandwidthResult) ResultKind() record.Kind { return record.KindBandwidth }

// SpeedtestRunner invokes the Speedtest CLI with structured output.
type SpeedtestRunner struct {
	command  string
	serverID int
	logger   util.Logger
}

func NewSpeedtestRunner(command string, preferredServerID int, logger util.Logger) *SpeedtestRunner {
	return &SpeedtestRunner{
		command:  command,
		serverID: preferredServerID,
		logger:   logger,
	}
}

func (s *SpeedtestRunner) Kind() record.Kind { return record.KindBandwidth }

func (s *SpeedtestRunner) Run(ctx context.Context) (Result, error) {
	args := []string{"--format=json"}
	if s.serverID > 0 {
		args = append(args, "--server-id", strconv.Itoa(s.serverID))
	}
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("running speedtest", "command", s.command, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrProbeExec, diag)
	}

	payload, err := parseSpeedtestOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return &BandwidthResult{Payload: *payload}, nil
}

func parseSpeedtestOutput(out []byte) (*SpeedtestPayload, error) {
	var payload SpeedtestPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeParse, err)
	}
	payload.Server.Location = decodeUnicodeEscapes(payload.Server.Location)
	return &payload, nil
}

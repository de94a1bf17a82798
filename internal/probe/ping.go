package probe

import (
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
)

// rttPattern matches the round-trip marker in ping output on both OS
// families: "time=23.4 ms" (unix) and "time=23ms" or "time<1ms" (windows).
var rttPattern = regexp.MustCompile(`time[=<]([0-9.]+)\s?ms`)

// LatencyResult is the raw outcome of one echo request. ResponseTimeMs
// is meaningful only when Success is true.
type LatencyResult struct {
	Target         string
	Iface          string
	SentAt         time.Time
	Success        bool
	ResponseTimeMs float64
}

func (*LatencyResult) ResultKind() record.Kind { return record.KindLatency }

// PingRunner sends one echo request per cycle through the OS ping
// utility. Flag syntax differs between OS families, so the argument
// list is resolved once at construction, not per cycle. The ~1s
// timeout is enforced by the ping command itself.
type PingRunner struct {
	command string
	target  string
	iface   string
	args    []string
	logger  util.Logger
}

func NewPingRunner(command, target, iface string, logger util.Logger) *PingRunner {
	return &PingRunner{
		command: command,
		target:  target,
		iface:   iface,
		args:    pingArgs(runtime.GOOS, target),
		logger:  logger,
	}
}

func pingArgs(goos, target string) []string {
	if goos == "windows" {
		return []string{"-n", "1", "-w", "1000", target}
	}
	return []string{"-c", "1", "-W", "1", target}
}

func (p *PingRunner) Kind() record.Kind { return record.KindLatency }

// Run never returns ErrProbeExec for an unreachable target: a failed or
// timed-out echo is a normal outcome recorded as success=false.
func (p *PingRunner) Run(ctx context.Context) (Result, error) {
	result := &LatencyResult{
		Target: p.target,
		Iface:  p.iface,
		SentAt: time.Now().UTC(),
	}
	out, err := exec.CommandContext(ctx, p.command, p.args...).Output()
	if err != nil {
		p.logger.Debug("ping did not succeed", "target", p.target, "error", err)
		return result, nil
	}
	rtt, ok := parsePingOutput(string(out))
	if !ok {
		p.logger.Debug("ping output missing rtt marker", "target", p.target)
		return result, nil
	}
	result.Success = true
	result.ResponseTimeMs = rtt
	return result, nil
}

func parsePingOutput(out string) (float64, bool) {
	match := rttPattern.FindStringSubmatch(out)
	if match == nil {
		return 0, false
	}
	rtt, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return rtt, true
}

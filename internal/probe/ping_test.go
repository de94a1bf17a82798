package probe

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
)

func TestParsePingOutput(t *testing.T) {
	cases := []struct {
		name    string
		out     string
		wantRTT float64
		wantOK  bool
	}{
		{
			name:    "linux",
			out:     "64 bytes from 10.30.5.1: icmp_seq=1 ttl=64 time=23.4 ms\n",
			wantRTT: 23.4,
			wantOK:  true,
		},
		{
			name:    "windows",
			out:     "Reply from 10.30.5.1: bytes=32 time=23ms TTL=64\r\n",
			wantRTT: 23,
			wantOK:  true,
		},
		{
			name:    "windows sub-millisecond",
			out:     "Reply from 10.30.5.1: bytes=32 time<1ms TTL=64\r\n",
			wantRTT: 1,
			wantOK:  true,
		},
		{
			name:   "no marker",
			out:    "Request timeout for icmp_seq 1\n",
			wantOK: false,
		},
		{
			name:   "empty",
			out:    "",
			wantOK: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rtt, ok := parsePingOutput(tc.out)
			if ok != tc.wantOK {
				t.Fatalf("parsePingOutput(%q) ok = %v, want %v", tc.out, ok, tc.wantOK)
			}
			if ok && rtt != tc.wantRTT {
				t.Fatalf("parsePingOutput(%q) = %v, want %v", tc.out, rtt, tc.wantRTT)
			}
		})
	}
}

func TestPingArgs(t *testing.T) {
	unix := pingArgs("linux", "10.30.5.1")
	want := []string{"-c", "1", "-W", "1", "10.30.5.1"}
	for i := range want {
		if unix[i] != want[i] {
			t.Fatalf("linux args = %v, want %v", unix, want)
		}
	}
	win := pingArgs("windows", "10.30.5.1")
	want = []string{"-n", "1", "-w", "1000", "10.30.5.1"}
	for i := range want {
		if win[i] != want[i] {
			t.Fatalf("windows args = %v, want %v", win, want)
		}
	}
}

func TestPingRunnerSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	stub := writeStub(t, "echo '64 bytes from 10.30.5.1: icmp_seq=1 ttl=64 time=23.4 ms'\n")
	runner := NewPingRunner(stub, "10.30.5.1", "", util.NewLogger("error"))
	if runner.Kind() != record.KindLatency {
		t.Fatalf("Kind = %v", runner.Kind())
	}
	before := time.Now().UTC()
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lat, ok := res.(*LatencyResult)
	if !ok {
		t.Fatalf("result type = %T", res)
	}
	if !lat.Success || lat.ResponseTimeMs != 23.4 {
		t.Fatalf("result = %+v, want success with 23.4ms", lat)
	}
	if lat.Target != "10.30.5.1" {
		t.Fatalf("target = %q", lat.Target)
	}
	if lat.SentAt.Before(before) || lat.SentAt.After(time.Now().UTC()) {
		t.Fatalf("SentAt = %v, outside test window", lat.SentAt)
	}
}

func TestPingRunnerNonZeroExitIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	stub := writeStub(t, "echo 'time=99.9 ms'\nexit 1\n")
	runner := NewPingRunner(stub, "10.30.5.1", "", util.NewLogger("error"))
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error for non-zero exit: %v", err)
	}
	lat := res.(*LatencyResult)
	if lat.Success {
		t.Fatal("non-zero exit must yield success=false regardless of output")
	}
	if lat.ResponseTimeMs != 0 {
		t.Fatalf("ResponseTimeMs = %v, want zero value", lat.ResponseTimeMs)
	}
}

func TestPingRunnerMissingMarker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	stub := writeStub(t, "echo 'Request timeout for icmp_seq 1'\n")
	runner := NewPingRunner(stub, "10.30.5.1", "", util.NewLogger("error"))
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.(*LatencyResult).Success {
		t.Fatal("missing rtt marker must yield success=false")
	}
}

func TestPingRunnerCommandNotFound(t *testing.T) {
	runner := NewPingRunner("/nonexistent/ping-binary", "10.30.5.1", "", util.NewLogger("error"))
	res, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error for missing command: %v", err)
	}
	if res.(*LatencyResult).Success {
		t.Fatal("missing command must yield success=false")
	}
}

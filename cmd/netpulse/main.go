package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netpulse/netpulse/internal/app"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/journal"
	"github.com/netpulse/netpulse/internal/util"
	"github.com/netpulse/netpulse/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runCmd := flag.NewFlagSet("run", flag.ExitOnError)
			configPath := runCmd.String("config", "config.yaml", "Path to config file")
			_ = runCmd.Parse(os.Args[2:])
			if *configPath == "config.yaml" && runCmd.NArg() > 0 {
				*configPath = runCmd.Arg(0)
			}
			runDaemon(*configPath)
			return
		case "check":
			checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
			configPath := checkCmd.String("config", "config.yaml", "Path to config file")
			_ = checkCmd.Parse(os.Args[2:])
			if *configPath == "config.yaml" && checkCmd.NArg() > 0 {
				*configPath = checkCmd.Arg(0)
			}
			checkConfig(*configPath)
			return
		case "history":
			histCmd := flag.NewFlagSet("history", flag.ExitOnError)
			configPath := histCmd.String("config", "config.yaml", "Path to config file")
			limit := histCmd.Int("n", 20, "Number of cycles to show")
			_ = histCmd.Parse(os.Args[2:])
			showHistory(*configPath, *limit)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		case "version", "-v", "--version":
			fmt.Println(version.Version)
			return
		}
	}

	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()
	if *configPath == "config.yaml" && len(flag.Args()) > 0 {
		*configPath = flag.Arg(0)
	}
	runDaemon(*configPath)
}

func runDaemon(configPath string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.LogLevel)

	rt, err := app.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	if err := rt.Start(); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown requested")
	case <-rt.Done():
		logger.Info("max runtime reached")
	}
	rt.Stop()
}

func checkConfig(path string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config valid: %s measurements every %s\n",
		cfg.Measurement.Kind, cfg.Measurement.Interval.Duration())
	os.Exit(0)
}

func showHistory(configPath string, limit int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	if cfg.Journal.Path == "" {
		fmt.Fprintln(os.Stderr, "no journal configured")
		os.Exit(1)
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal open failed: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := j.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal read failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s  %-12s  %s",
			e.StartedAt.Local().Format(time.RFC3339), e.Kind, e.Outcome, e.ID)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}
}

func printHelp() {
	fmt.Print(`netpulse - periodic network quality measurements

Usage:
  netpulse run --config <path>      Start the measurement daemon
  netpulse check --config <path>    Validate config file
  netpulse history --config <path>  Show recent measurement cycles
  netpulse help                     Show this help
  netpulse version                  Print version

Legacy:
  netpulse --config <path>
  netpulse <config-path>
`)
}

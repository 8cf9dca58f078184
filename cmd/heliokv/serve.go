package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/config"
	"github.com/ASHISH26940/heliokv/internal/logutil"
	"github.com/ASHISH26940/heliokv/internal/metrics"
	internal_raft "github.com/ASHISH26940/heliokv/internal/raft"
	"github.com/ASHISH26940/heliokv/internal/rpc"
	"github.com/ASHISH26940/heliokv/internal/server"
	"github.com/ASHISH26940/heliokv/internal/service"
	"github.com/ASHISH26940/heliokv/internal/store"
)

var serveFlags struct {
	configFile string
	host       string
	port       int
	rpcPort    int
	mode       string
	rounds     int
	logLevel   string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a heliokv node",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.configFile, "config", "c", "", "Path to a TOML config file")
	f.StringVar(&serveFlags.host, "host", "", "Host to listen on")
	f.IntVar(&serveFlags.port, "port", 0, "HTTP port")
	f.IntVar(&serveFlags.rpcPort, "rpc-port", 0, "gRPC port")
	f.StringVarP(&serveFlags.mode, "mode", "m", "", "synchronized, unsynchronized or sequenced")
	f.IntVar(&serveFlags.rounds, "rounds", 0, "Increments per bump-and-restore cycle")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig reads the config file, if any, and applies flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()
	if serveFlags.configFile != "" {
		if err := cfg.Load(serveFlags.configFile); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = serveFlags.host
	}
	if f.Changed("port") {
		cfg.Port = serveFlags.port
	}
	if f.Changed("rpc-port") {
		cfg.RPCPort = serveFlags.rpcPort
	}
	if f.Changed("mode") {
		cfg.Mode = serveFlags.mode
	}
	if f.Changed("rounds") {
		cfg.CounterRounds = serveFlags.rounds
	}
	if f.Changed("log-level") {
		cfg.LogLevel = serveFlags.logLevel
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lg, err := logutil.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer lg.Sync()

	policy, err := service.ParsePolicy(cfg.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store and serialization policy ---
	st := store.New(cfg.CounterRounds)
	m := metrics.New()
	opts := []service.Option{service.WithLogger(lg), service.WithMetrics(m)}

	if policy == service.Sequenced {
		seq, err := internal_raft.NewSequencer(ctx, st, internal_raft.Options{
			NodeID:           cfg.NodeID,
			HeartbeatTimeout: cfg.Raft.HeartbeatTimeout.Duration,
			ElectionTimeout:  cfg.Raft.ElectionTimeout.Duration,
			CommitTimeout:    cfg.Raft.CommitTimeout.Duration,
			ApplyTimeout:     cfg.ApplyTimeout.Duration,
			LogOutput:        zap.NewStdLog(lg.Named("raft")).Writer(),
		}, lg.Named("raft"))
		if err != nil {
			return err
		}
		defer func() {
			if err := seq.Shutdown(); err != nil {
				lg.Warn("sequencer shutdown", zap.Error(err))
			}
		}()
		opts = append(opts, service.WithSequencer(seq))
	}
	svc := service.New(st, policy.Locker(), opts...)

	// --- Transports ---
	rpcAddr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.RPCPort))
	lis, err := net.Listen("tcp", rpcAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", rpcAddr)
	}
	rpcSrv := rpc.NewServer(svc, lg.Named("rpc"))
	httpSrv := server.New(svc, m, lg.Named("http"))

	errCh := make(chan error, 2)
	go func() { errCh <- rpcSrv.Serve(lis) }()
	go func() { errCh <- httpSrv.Start(ctx, net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))) }()

	lg.Info("heliokv node started",
		zap.String("node_id", cfg.NodeID),
		zap.Stringer("mode", policy),
		zap.Int("counter_rounds", cfg.CounterRounds))

	select {
	case <-ctx.Done():
		lg.Info("received shutdown signal")
	case err = <-errCh:
		if err != nil {
			lg.Error("transport failed", zap.Error(err))
		}
	}

	rpcSrv.Stop()
	if serr := httpSrv.Stop(); serr != nil {
		lg.Warn("http shutdown", zap.Error(serr))
	}
	return err
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"arenanet/internal/config"
	"arenanet/internal/logging"
	"arenanet/internal/server"
	"arenanet/internal/stats"
	"arenanet/internal/telemetry"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动服务器，直到收到 SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}

	log, logCloser, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		GelfEnabled: cfg.Gelf.Enabled,
		GelfAddress: cfg.Gelf.Address,
		Out:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	metrics, err := telemetry.Default()
	if err != nil {
		return fmt.Errorf("注册指标失败: %w", err)
	}

	sink, err := openSink(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭统计输出失败")
		}
	}()

	srv := server.NewGameServer(cfg, log, server.WithMetrics(metrics), server.WithSink(sink))
	if err := srv.Listen(); err != nil {
		return err
	}

	log.Info().
		Str("addr", srv.Addr().String()).
		Str("proto", cfg.Server.Proto).
		Int("tps", cfg.Server.TPS).
		Int("max_players", cfg.Server.MaxPlayers).
		Strs("loadout", cfg.Server.Loadout).
		Msg("服务器正在运行，按 Ctrl+C 停止")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("收到退出信号")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	srv.Shutdown()

	for name, st := range srv.Stats() {
		log.Info().
			Str("arena", name).
			Int("players", st.Players).
			Int32("frame", st.Frame).
			Msg("竞技场最终统计")
	}
	return nil
}

// openSink 按配置组合数据库流水账和 InfluxDB，都没开时返回空的 Fanout
func openSink(cfg *config.Config, log zerolog.Logger) (stats.Sink, error) {
	var sinks []stats.Sink
	if cfg.Stats.Enabled {
		db, err := stats.OpenDB(cfg.Stats.PostgresDSN, cfg.Stats.SqlitePath)
		if err != nil {
			return nil, err
		}
		ledger, err := stats.NewLedger(db, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ledger)
	}
	if cfg.Influx.Enabled {
		sinks = append(sinks, stats.NewInflux(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, log))
	}
	return stats.NewFanout(sinks...), nil
}

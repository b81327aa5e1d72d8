package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arenanet/internal/client"
	"arenanet/internal/config"
	"arenanet/internal/logging"
)

type peerFlags struct {
	configPath string
	addr       string
	proto      string
	name       string
	team       int32
	loadout    []string
	weapon     string
	drill      bool
	duration   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &peerFlags{}

	rootCmd := &cobra.Command{
		Use:          "arenanet-peer",
		Short:        "无界面的竞技场客户端",
		Long:         "arenanet-peer 连上服务器后运行客户端预测与开火同步，可选用练习机器人自动瞄准射击。",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPeer(cmd, flags)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "配置文件路径，客户端只用其中的同步常数和武器覆盖")
	f.StringVar(&flags.addr, "addr", "127.0.0.1:8080", "服务器地址")
	f.StringVar(&flags.proto, "proto", "tcp", "传输协议 tcp|kcp|ws")
	f.StringVar(&flags.name, "name", "peer", "玩家名")
	f.Int32Var(&flags.team, "team", 0, "队伍")
	f.StringSliceVar(&flags.loadout, "loadout", nil, "请求的武器列表，为空时使用服务器默认配装")
	f.StringVar(&flags.weapon, "weapon", "", "进入后切换到的武器")
	f.BoolVar(&flags.drill, "drill", false, "启用练习机器人")
	f.DurationVar(&flags.duration, "duration", 0, "运行时长，0 表示直到 Ctrl+C")
	return rootCmd
}

func runPeer(cmd *cobra.Command, flags *peerFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	log, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	nc := client.NewNetworkClient(flags.addr, flags.proto, log)
	if err := nc.Connect(client.JoinOptions{
		Name:    flags.name,
		Team:    flags.team,
		Weapons: flags.loadout,
	}); err != nil {
		return err
	}
	defer nc.Close()

	p, err := client.NewPeer(nc, nc.Welcome(), cfg, log)
	if err != nil {
		return err
	}
	if flags.weapon != "" {
		slot := p.Slot(flags.weapon)
		if slot < 0 {
			return fmt.Errorf("配装里没有武器 %s", flags.weapon)
		}
		p.Switch(slot)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if flags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.duration)
		defer cancel()
	}

	var brain client.Brain
	if flags.drill {
		brain = client.NewDrill(client.DefaultDrillConfig())
	}

	log.Info().
		Int32("player_id", int32(p.ID())).
		Str("addr", flags.addr).
		Str("proto", flags.proto).
		Bool("drill", flags.drill).
		Msg("已进入竞技场")

	runErr := p.Run(ctx, cfg.Server.TPS, brain)

	st := p.Stats()
	log.Info().
		Int("shots", st.Shots).
		Int("acks", st.Acks).
		Int("desyncs", st.Desyncs).
		Int("hits", st.Hits).
		Int("damage", st.Damage).
		Int("taken", st.TakenHit).
		Float64("rtt_ms", nc.RoundTripMs()).
		Msg("客户端退出")
	return runErr
}

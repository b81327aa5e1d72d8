package main

import (
	"github.com/spf13/cobra"

	"arenanet/internal/config"
)

type rootFlags struct {
	configPath string
	addr       string
	proto      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "arenanet-server",
		Short:         "竞技场权威服务器",
		Long:          "arenanet-server 负责开火同步、延迟补偿命中判定和比赛流程。",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "配置文件路径，默认查找 ./arenanet.{yaml,toml,json}")
	pf.StringVar(&flags.addr, "addr", "", "监听地址，覆盖 server.addr")
	pf.StringVar(&flags.proto, "proto", "", "传输协议 tcp|kcp|ws，覆盖 server.proto")

	rootCmd.AddCommand(newServeCmd(flags), newWeaponsCmd(flags))
	return rootCmd
}

// load 读取配置并叠加命令行参数
func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.proto != "" {
		cfg.Server.Proto = f.proto
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

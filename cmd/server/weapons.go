package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newWeaponsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "weapons",
		Short: "打印叠加配置后的武器表",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			table, err := cfg.WeaponTable()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			loadout := strings.Join(cfg.Server.Loadout, ",")
			if _, err := fmt.Fprintf(out, "默认配装: %s\n", loadout); err != nil {
				return err
			}
			for _, w := range table {
				if _, err := fmt.Fprintf(out, "%s (收枪 %.2fs)\n", w.Name, w.PutDownTime); err != nil {
					return err
				}
				for i, m := range w.Modes {
					if _, err := fmt.Fprintf(out, "  %d %-10s %-13s refire=%.2fs damage=%d range=%.0f\n",
						i, m.Name, m.State, m.Refire, m.Damage, m.TraceRange); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/backend/ebitenstage"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scene.toml>",
		Short: "Show a scene in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())

			tctx, err := tableau.NewContext(ebitenstage.New(), cfg.contextOptions()...)
			if err != nil {
				return err
			}
			defer tctx.Close()

			stage, err := tctx.NewStage(cfg.stageConfig())
			if err != nil {
				return err
			}
			sc, err := buildScene(tctx.Clock(), stage, cfg.Actors)
			if err != nil {
				return err
			}
			logger.Info("scene loaded", "actors", len(sc.actors), "animations", len(sc.transitions))
			return ebitenstage.Run(stage)
		},
	}
}

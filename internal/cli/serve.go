package cli

import (
	"github.com/spf13/cobra"

	"weeklybrief/internal/artifact"
	"weeklybrief/internal/feed"
	"weeklybrief/internal/pipeline"
	"weeklybrief/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host feed.xml, episode MP3s and cover.png over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			// --listen overrides the config file if provided.
			if listen != "" {
				cfg.Listen = listen
			}
			store := feed.NewStore(artifact.Dir(cfg.OutputDir).FeedPath(), pipeline.ShowFor(cfg), nil)
			return web.StartServer(cmd.Context(), cfg, store)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

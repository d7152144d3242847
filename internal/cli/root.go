// Package cli wires the weeklybrief commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weeklybrief/internal/config"
	"weeklybrief/internal/gcal"
	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/pipeline"
)

const defaultConfigPath = "config.yaml"

// Swapped in tests.
var (
	buildDeps     = pipeline.Build
	buildCalendar = pipeline.BuildCalendar
)

type rootOptions struct {
	configPath  string
	listSources bool
	skipFeed    bool
}

// NewRootCmd builds the command tree. Running the root command produces
// this week's brief once.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "weeklybrief",
		Short: "Turn next week's calendar into a spoken brief and podcast feed",
		Long: `weeklybrief reads your calendars for the coming Monday through Sunday,
narrates them in English or Czech, synthesizes an MP3 and appends it to a
private podcast feed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to config file (created with defaults if missing)")
	cmd.Flags().BoolVar(&opts.listSources, "list-sources", false, "List readable calendars and exit")
	cmd.Flags().BoolVar(&opts.skipFeed, "skip-feed", false, "Write summary and MP3 but leave feed.xml untouched")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newScheduleCmd(opts))
	cmd.AddCommand(newVersionCmd(version))
	cmd.Version = version
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, NewRootCmd(version), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, in io.Reader, out, errOut io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		if errors.Is(err, gcal.ErrCredentialsMissing) {
			fmt.Fprintln(errOut, "Fix:", gcal.CredentialsHint)
		}
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies its log level.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"config_path", path,
		"timezone", cfg.Timezone,
		"language", cfg.Narration.Language,
		"sources", len(cfg.Sources),
		"output_dir", cfg.OutputDir,
		"feed_base_url", cfg.Feed.BaseURL,
		"generator", cfg.Generator.APIKey != "" && !cfg.Narration.TemplateOnly,
	)
	return cfg, nil
}

func runOnce(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	if opts.listSources {
		router, err := buildCalendar(ctx, cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return printSources(ctx, cmd.OutOrStdout(), pipeline.Deps{Lister: router})
	}

	deps, err := buildDeps(ctx, cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, cfg, deps, pipeline.Options{SkipFeed: opts.skipFeed})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message())
	return nil
}

func printSources(ctx context.Context, w io.Writer, deps pipeline.Deps) error {
	infos, err := pipeline.ListSources(ctx, deps)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No calendars found.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t(%s)\n", info.ID, info.Name, info.Kind)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Add the IDs you want under `sources` in the config file, or set CALENDAR_IDS=id1,id2.")
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weeklybrief %s\n", version)
		},
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/coursedl/internal/api"
	"github.com/surge-downloader/coursedl/internal/config"
	"github.com/surge-downloader/coursedl/internal/download"
	"github.com/surge-downloader/coursedl/internal/engine/single"
	"github.com/surge-downloader/coursedl/internal/engine/state"
	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/paths"
	"github.com/surge-downloader/coursedl/internal/session"
	"github.com/surge-downloader/coursedl/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const historyDBName = "coursedl.db"

// errIncomplete makes the process exit non-zero without repeating the summary.
var errIncomplete = errors.New("retrieval incomplete")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coursedl [course-slug]...",
	Short: "Download video courses with their subtitles and exercise files",
	Long: `coursedl logs into the learning platform and mirrors every configured course
into a local tree of chapter directories, videos, SRT subtitles and exercise files.
Courses already present are skipped.`,
	Version:      Version,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := resolveSettings(cmd, args)
		if err != nil {
			return err
		}

		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		logger := utils.NewLogger(cmd.ErrOrStderr(), settings.General.LogLevel, jsonLogs)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := retrieve(ctx, settings, logger, cmd.OutOrStdout())
		if report != nil {
			printSummary(cmd.OutOrStdout(), report, err)
		}
		if err != nil {
			return err
		}
		if report.HasFailures() {
			return errIncomplete
		}
		return nil
	},
}

// resolveSettings layers settings file, environment, then flags and
// positional slugs, and validates the result.
func resolveSettings(cmd *cobra.Command, args []string) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetSettingsPath()
	}
	settings, err := config.LoadSettingsFrom(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := settings.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		settings.General.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("proxy") {
		settings.Connections.ProxyURL, _ = flags.GetString("proxy")
	}
	if flags.Changed("cookie") {
		settings.Auth.SessionCookie, _ = flags.GetString("cookie")
	}
	if flags.Changed("concurrency") {
		settings.Connections.MaxConcurrentDownloads, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("recheck") {
		settings.General.RecheckExisting, _ = flags.GetBool("recheck")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		settings.General.LogLevel = "debug"
	}
	if len(args) > 0 {
		settings.General.Courses = args
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// retrieve runs one batch: lock, history, login, schedule. The report is
// nil when the run failed before any course was attempted.
func retrieve(ctx context.Context, settings *config.Settings, logger zerolog.Logger, out io.Writer) (*download.Report, error) {
	outputDir := settings.General.OutputDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	lock, err := AcquireLock(outputDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ReleaseLock(lock); err != nil {
			logger.Warn().Err(err).Msg("releasing run lock")
		}
	}()

	state.Configure(filepath.Join(config.GetStateDir(), historyDBName))
	defer state.CloseDB()

	runtime := types.ConvertRuntimeConfig(settings.ToRuntimeConfig())
	creds := session.Credentials{
		Username:      settings.Auth.Username,
		Password:      settings.Auth.Password,
		SessionCookie: settings.Auth.SessionCookie,
	}

	start := time.Now()
	sc, err := session.NewProvider(runtime, logger).Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("session ready")

	progressCh := make(chan any, types.ProgressChannelBuffer)
	consumerDone := StartEventConsumer(progressCh, out, logger)

	sched := download.NewScheduler(download.Options{
		API:             api.NewClient(sc, runtime, logger),
		Downloader:      single.NewDownloader(sc.Client, sc.Header(), runtime, logger),
		Resolver:        paths.Resolver{Root: outputDir},
		Runtime:         runtime,
		Events:          progressCh,
		Logger:          logger,
		RecheckExisting: settings.General.RecheckExisting,
	})
	report, runErr := sched.Run(ctx, settings.General.Courses)

	close(progressCh)
	<-consumerDone

	logger.Info().Dur("elapsed", time.Since(start)).Msg("all done")
	return report, runErr
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addRunFlags(rootCmd)
	rootCmd.PersistentFlags().String("config", "", "Path to settings.json (default: user config dir)")
	rootCmd.SetVersionTemplate("coursedl version {{.Version}}\n")
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Directory courses are written to")
	cmd.Flags().String("proxy", "", "HTTP or SOCKS5 proxy URL")
	cmd.Flags().String("cookie", "", "Session cookie (li_at) to use instead of username and password")
	cmd.Flags().IntP("concurrency", "c", 0, "Maximum simultaneous downloads")
	cmd.Flags().Bool("recheck", false, "Revisit courses that already have a directory")
	cmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON lines")
}

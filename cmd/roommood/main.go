package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manash/roommood/internal/config"
	"github.com/manash/roommood/internal/display"
	"github.com/manash/roommood/internal/image"
	"github.com/manash/roommood/internal/logger"
	"github.com/manash/roommood/internal/pipeline"
	"github.com/manash/roommood/internal/provider"
	"github.com/manash/roommood/internal/provider/gemini"
	"github.com/manash/roommood/internal/repl"
	"github.com/manash/roommood/internal/store"
	"github.com/manash/roommood/internal/workflow"
	"github.com/manash/roommood/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

type App struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Registry    *models.ModelRegistry
	LoadConfig  func() (*config.Config, error)
	ConfigPath  func() (string, error)
	NewProvider func(cfg *provider.Config, registry *models.ModelRegistry, log *logger.Logger) (provider.Provider, error)
	NewBackend  func(cfg config.StoreConfig) (store.Backend, error)
	NewSaver    func() *image.Saver
}

func DefaultApp() *App {
	return &App{
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		Registry:   models.DefaultRegistry(),
		LoadConfig: config.Load,
		ConfigPath: config.Path,
		NewProvider: func(cfg *provider.Config, registry *models.ModelRegistry, log *logger.Logger) (provider.Provider, error) {
			p, err := gemini.New(cfg, registry, log)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		NewBackend: openBackend,
		NewSaver:   image.NewSaver,
	}
}

// openBackend builds the saved-mood backend the config names.
func openBackend(sc config.StoreConfig) (store.Backend, error) {
	switch sc.Backend {
	case config.BackendRedis:
		var opts []store.RedisOption
		if sc.RedisPrefix != "" {
			opts = append(opts, store.WithPrefix(sc.RedisPrefix))
		}
		return store.NewRedisBackend(sc.RedisAddr, sc.RedisPassword, sc.RedisDB, opts...), nil
	default:
		if sc.Path != "" {
			return store.NewSQLiteBackendWithPath(sc.Path)
		}
		return store.NewSQLiteBackend()
	}
}

type rootFlags struct {
	apiKey      string
	textModel   string
	imageModel  string
	storeKind   string
	storePath   string
	redisAddr   string
	retries     int
	timeoutSec  int
	logMode     string
	verbose     bool
	downloadDir string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return newRootCmd(DefaultApp()).ExecuteContext(ctx)
}

func newRootCmd(app *App) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "roommood",
		Short: "Redesign a room photo into moods and a final makeover image",
		Long: `roommood turns a photo of a room into a few proposed interior design moods,
lets you refine one with text or object photos, and produces a final image.

Running roommood with no arguments starts the interactive shell:
  upload room.jpg
  generate
  select 2
  refine "add a green velvet sofa"
  make
  save`,
		Args:          cobra.NoArgs,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, app, flags)
		},
	}
	cmd.SetIn(app.In)
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.apiKey, "api-key", "", "Gemini API key (defaults to config, then GEMINI_API_KEY)")
	pf.StringVar(&flags.storeKind, "store", "", "saved mood backend (sqlite, redis)")
	pf.StringVar(&flags.storePath, "store-path", "", "sqlite database path")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "redis address for the redis backend")
	pf.StringVar(&flags.logMode, "log-mode", "", "log format (dev, prod)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log requests and debug detail to stderr")

	cmd.Flags().StringVar(&flags.textModel, "text-model", "", "model for classification, moods and suggestions")
	cmd.Flags().StringVar(&flags.imageModel, "image-model", "", "model for image generation")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "extra attempts after a failed remote call")
	cmd.Flags().IntVar(&flags.timeoutSec, "timeout", 0, "seconds allowed per remote call")
	cmd.Flags().StringVarP(&flags.downloadDir, "output", "o", ".", "directory for downloaded images")

	cmd.AddCommand(newSavedCmd(app, flags))
	cmd.AddCommand(newKeysCmd(app, flags))
	cmd.AddCommand(newModelsCmd(app))
	return cmd
}

// loadConfig reads the config and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command, app *App, flags *rootFlags) (*config.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("text-model") {
		cfg.TextModel = flags.textModel
	}
	if changed("image-model") {
		cfg.ImageModel = flags.imageModel
	}
	if changed("store") {
		cfg.Store.Backend = flags.storeKind
	}
	if changed("store-path") {
		cfg.Store.Path = flags.storePath
	}
	if changed("redis-addr") {
		cfg.Store.RedisAddr = flags.redisAddr
	}
	if changed("retries") {
		cfg.Retries = flags.retries
	}
	if changed("timeout") {
		cfg.TimeoutSec = flags.timeoutSec
	}
	if changed("log-mode") {
		cfg.LogMode = flags.logMode
	}
	if changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	return cfg, cfg.Validate()
}

func openStore(ctx context.Context, app *App, cfg *config.Config, log *logger.Logger) (*store.MoodStore, error) {
	backend, err := app.NewBackend(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return store.Open(ctx, backend, log), nil
}

func runShell(cmd *cobra.Command, app *App, flags *rootFlags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, app, flags)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode, cfg.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	apiKey, source, err := cfg.ResolveAPIKey(flags.apiKey)
	if err != nil {
		return err
	}
	log.Debug("api key resolved", "source", source)

	prov, err := app.NewProvider(&provider.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.BaseURL,
		TimeoutSec: cfg.TimeoutSec,
		Verbose:    cfg.Verbose,
	}, app.Registry, log)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	factory := provider.NewFactory(app.Registry)
	factory.Register(prov)
	for _, check := range []struct {
		model string
		mode  models.ResponseMode
	}{
		{cfg.TextModel, models.ModeText},
		{cfg.TextModel, models.ModeStructured},
		{cfg.ImageModel, models.ModeImage},
	} {
		if err := factory.CheckModel(check.model, check.mode); err != nil {
			return err
		}
	}
	textProv, err := factory.GetForModel(cfg.TextModel)
	if err != nil {
		return err
	}
	if imageProv, err := factory.GetForModel(cfg.ImageModel); err != nil {
		return err
	} else if imageProv.Name() != textProv.Name() {
		return fmt.Errorf("text and image models must use the same provider (%s, %s)", textProv.Name(), imageProv.Name())
	}

	moods, err := openStore(ctx, app, cfg, log)
	if err != nil {
		return err
	}
	defer moods.Close()

	saver := app.NewSaver()
	metrics := pipeline.NewMetrics()
	pl := pipeline.New(textProv, pipeline.Options{
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Retries:    cfg.Retries,
		Logger:     log,
		Metrics:    metrics,
		Fetcher:    saver,
	})

	var displayer *display.Displayer
	if display.IsTerminalSupported() {
		displayer = display.New(cmd.OutOrStdout(), saver)
	}

	shell := repl.New(&repl.Config{
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
		Err:         cmd.ErrOrStderr(),
		Machine:     workflow.NewMachine(pl, moods, log),
		Saver:       saver,
		Displayer:   displayer,
		Metrics:     metrics,
		Logger:      log,
		DownloadDir: flags.downloadDir,
	})
	return shell.Run(ctx)
}

func newSavedCmd(app *App, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List or download saved moods",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved moods, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, app, flags)
			if err != nil {
				return err
			}
			moods, err := openStore(cmd.Context(), app, cfg, logger.Nop())
			if err != nil {
				return err
			}
			defer moods.Close()

			repl.WriteSavedList(cmd.OutOrStdout(), moods.List())
			return nil
		},
	})

	var outDir string
	download := &cobra.Command{
		Use:   "download <id>",
		Short: "Write a saved mood's final image to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, app, flags)
			if err != nil {
				return err
			}
			moods, err := openStore(cmd.Context(), app, cfg, logger.Nop())
			if err != nil {
				return err
			}
			defer moods.Close()

			rec, err := repl.FindSaved(moods.List(), args[0])
			if err != nil {
				return err
			}
			path, err := app.NewSaver().SaveFinal(cmd.Context(), rec.FinalImage, outDir, rec.Title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", path)
			return nil
		},
	}
	download.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.AddCommand(download)

	return cmd
}

func newKeysCmd(app *App, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored Gemini API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store an API key in the config file (reads stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				key = line
			}

			path, err := app.ConfigPath()
			if err != nil {
				return err
			}
			if err := config.SetAPIKey(path, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key stored in %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the API key in use, masked, and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			key, source, err := cfg.ResolveAPIKey(flags.apiKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (from %s)\n", config.MaskKey(key), source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := app.ConfigPath()
			if err != nil {
				return err
			}
			if err := config.DeleteAPIKey(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key deleted")
			return nil
		},
	})

	return cmd
}

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and what they can return",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range app.Registry.List() {
				mc, _ := app.Registry.Get(name)
				var modes []string
				if mc.SupportsText {
					modes = append(modes, string(models.ModeText))
				}
				if mc.SupportsStructured {
					modes = append(modes, string(models.ModeStructured))
				}
				if mc.SupportsImageOutput {
					modes = append(modes, string(models.ModeImage))
				}
				fmt.Fprintf(out, "  %-36s %-8s %s\n", name, mc.Provider, strings.Join(modes, ", "))
			}
			return nil
		},
	}
}

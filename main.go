// langtab — localization string-table store with AI translation sync.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/langtab/langtab/bundle"
	"github.com/langtab/langtab/config"
	"github.com/langtab/langtab/lookup"
	"github.com/langtab/langtab/provider"
	"github.com/langtab/langtab/settings"
	"github.com/langtab/langtab/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Global flags and logging
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	noColor := os.Getenv("NO_COLOR") != ""
	if info, err := os.Stderr.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
		noColor = true
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "langtab",
		Short: "Localization string-table store with AI translation sync",
		Long: `langtab — localization string-table store with AI translation sync.

Persists per-language string tables as atomic on-disk bundles and keeps
them in sync with an OpenAI-compatible translation endpoint. Lookups fall
back from app resources to the stored bundle to the key itself.

Commands:
  status      Show table info and per-language entry counts
  init        Create langtab.yaml and the initial bundle layout
  translate   Translate texts and merge them into the stored table
  lookup      Resolve a key through the fallback chain
  remove      Remove keys from every language table`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newStatusCmd(),
		newInitCmd(),
		newTranslateCmd(),
		newLookupCmd(),
		newRemoveCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		newLogger().Error("command failed", "err", err)
		os.Exit(1)
	}
}

// openStore loads the project configuration and opens the bundle store
// with the persisted current-root slot.
func openStore() (*config.Config, *bundle.Store, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}

	base := filepath.Join(rootDir, cfg.BundleDir)
	slot := settings.NewFileStore(filepath.Join(base, "state.json"))
	log := newLogger()
	store, err := bundle.Open(base, cfg.TableName, cfg.Languages, slot,
		bundle.WithCleanupHandler(func(err error) {
			log.Warn("stale bundle cleanup failed", "err", err)
		}))
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// newCoordinator wires the configured provider into a coordinator.
// A missing endpoint yields a coordinator without a translation service.
func newCoordinator(cfg *config.Config, store *bundle.Store) (*translate.Coordinator, error) {
	var tr translate.Translator
	if cfg.Provider.Endpoint != "" {
		tr = provider.NewOpenAI(cfg.Provider.Endpoint, cfg.Provider.Model, cfg.Provider.APIKey)
	}
	return translate.NewCoordinator(store, tr, translate.WithDisabled(cfg.Disabled))
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("langtab %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var (
		languages []string
		source    string
		tableName string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create langtab.yaml and the initial bundle layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfgPath := filepath.Join(rootDir, config.FileName)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}

			cfg := config.Default()
			cfg.TableName = tableName
			cfg.SourceLang = config.NormalizeLang(source)
			cfg.Languages = nil
			for _, lang := range languages {
				cfg.Languages = append(cfg.Languages, config.NormalizeLang(lang))
			}
			if len(cfg.Languages) == 0 {
				cfg.Languages = []string{cfg.SourceLang}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(rootDir); err != nil {
				return err
			}
			log.Info("wrote configuration", "path", cfgPath)

			_, store, err := openStore()
			if err != nil {
				return err
			}
			log.Info("initialized bundle store",
				"root", store.CurrentRoot(), "languages", cfg.Languages)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&languages, "languages", "l", nil, "Supported languages (comma-separated)")
	cmd.Flags().StringVar(&source, "source", "en", "Source language")
	cmd.Flags().StringVar(&tableName, "table", "Localizable", "Table name")
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show table info and per-language entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore()
			if err != nil {
				return err
			}

			fmt.Printf("Table:        %s\n", cfg.TableName)
			fmt.Printf("Source:       %s\n", cfg.SourceLang)
			fmt.Printf("Current root: %s\n", store.CurrentRootName())
			if cfg.Disabled {
				fmt.Println("Store:        DISABLED")
			}
			fmt.Println()

			t := store.Load()
			for _, lang := range cfg.Languages {
				fmt.Printf("  %-8s %4d entries\n", lang, len(t.Entries(lang)))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		from    string
		to      []string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "translate <text>...",
		Short: "Translate texts and merge them into the stored table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, store, err := openStore()
			if err != nil {
				return err
			}
			coord, err := newCoordinator(cfg, store)
			if err != nil {
				return err
			}
			defer coord.Close()

			coord.OnChange(func() {
				log.Info("table committed", "root", store.CurrentRootName())
			})

			if from == "" {
				from = cfg.SourceLang
			}
			targets := make([]string, 0, len(to))
			for _, lang := range to {
				targets = append(targets, config.NormalizeLang(lang))
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			log.Info("translating", "texts", len(args), "from", from)
			req := coord.Translate(ctx, args, config.NormalizeLang(from), targets)
			if err := req.Wait(ctx); err != nil {
				if errors.Is(err, translate.ErrDisabled) {
					return fmt.Errorf("store is disabled (see langtab.yaml or LANGTAB_DISABLED)")
				}
				return err
			}
			log.Info("translation complete", "state", req.State().String())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source language (default: config source_lang)")
	cmd.Flags().StringSliceVar(&to, "to", nil, "Target languages (default: all supported except source)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall request timeout")
	return cmd
}

// ---------------------------------------------------------------------------
// lookup
// ---------------------------------------------------------------------------

func newLookupCmd() *cobra.Command {
	var (
		lang     string
		fallback string
	)
	cmd := &cobra.Command{
		Use:   "lookup <key>",
		Short: "Resolve a key through the fallback chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}

			r := lookup.NewResolver(store, nil)
			if fallback != "" {
				fmt.Println(r.Resolve(args[0], config.NormalizeLang(lang), fallback))
			} else {
				fmt.Println(r.Resolve(args[0], config.NormalizeLang(lang)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "Language to resolve for")
	cmd.Flags().StringVar(&fallback, "fallback", "", "Value to return when no entry exists")
	return cmd
}

// ---------------------------------------------------------------------------
// remove
// ---------------------------------------------------------------------------

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>...",
		Short: "Remove keys from every language table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, store, err := openStore()
			if err != nil {
				return err
			}
			coord, err := newCoordinator(cfg, store)
			if err != nil {
				return err
			}
			defer coord.Close()

			req := coord.Remove(context.Background(), args)
			if err := req.Wait(context.Background()); err != nil {
				return err
			}
			log.Info("removed keys", "count", len(args))
			return nil
		},
	}
}

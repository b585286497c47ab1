package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/checkpoint/internal/config"
	"github.com/andresmejia3/checkpoint/internal/logging"
	"github.com/andresmejia3/checkpoint/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Options holds the global flags. Empty values leave the config untouched.
type Options struct {
	ConfigPath string
	ServerURL  string
	Device     string
	Driver     string
	DBURL      string
	LogLevel   string
	SaveDir    string
}

// needsJournal marks commands that cannot run without the database.
const needsJournal = "journal"

var (
	rootOpts Options

	// Cfg is the resolved configuration shared by subcommands
	Cfg *config.Config
	// Log carries diagnostics; operator output goes through the reporter
	Log *logrus.Logger
	// DB is the optional attempt journal; nil when no database is configured
	DB *store.Store

	closeLog func() error
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "checkpoint",
	Short:   "Camera capture client for biometric registration and access recognition",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootOpts.ConfigPath)
		if err != nil {
			return err
		}
		applyFlags(cfg, rootOpts)
		if err := cfg.Validate(); err != nil {
			return err
		}
		Cfg = cfg

		Log, closeLog, err = logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Dir:    cfg.Log.Dir,
			MaxAge: cfg.Log.MaxAge,
		})
		if err != nil {
			return err
		}

		required := cmd.Annotations[needsJournal] == "true"
		if cfg.Database.URL == "" {
			if required {
				return fmt.Errorf("%s needs a database: pass --db or set POSTGRES_HOST", cmd.Name())
			}
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), cfg.Database.URL)
		if err != nil {
			if required {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			Log.WithError(err).Warn("journal disabled: database unreachable")
			DB = nil
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
		if closeLog != nil {
			closeLog()
		}
	},
}

// applyFlags lets explicit command line values win over file and environment.
func applyFlags(cfg *config.Config, o Options) {
	if o.ServerURL != "" {
		cfg.ServerURL = o.ServerURL
	}
	if o.Device != "" {
		cfg.Camera.Device = o.Device
	}
	if o.Driver != "" {
		cfg.Camera.Driver = o.Driver
	}
	if o.DBURL != "" {
		cfg.Database.URL = o.DBURL
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.SaveDir != "" {
		cfg.SaveDir = o.SaveDir
	}
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootOpts.ConfigPath, "config", "", "Path to a YAML config file (default: ./checkpoint.yaml when present)")
	f.StringVar(&rootOpts.ServerURL, "server", "", "Base URL of the access-control backend")
	f.StringVar(&rootOpts.Device, "device", "", "Camera device (default: platform camera, e.g. /dev/video0)")
	f.StringVar(&rootOpts.Driver, "driver", "", "Camera driver: ffmpeg or pattern")
	f.StringVar(&rootOpts.DBURL, "db", "", "PostgreSQL connection string for the attempt journal")
	f.StringVar(&rootOpts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&rootOpts.SaveDir, "save-dir", "", "Directory where captured images are kept")
}

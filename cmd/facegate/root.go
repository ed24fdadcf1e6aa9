package main

import (
	"fmt"
	"os"

	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/storage"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "facegate",
		Short:         "Offline face recognition access controller",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
		newBackupCmd(a),
		newProbeCmd(a),
		newModelsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		a.cfg, err = config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
			a.cfg = config.DefaultConfig()
		}
	}

	a.cfg.ExpandPaths()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := a.cfg.Logging.Level
	if a.debug {
		level = "debug"
	}
	if err := logging.Init(level, a.cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("FaceGate v%s, store %s", version, a.cfg.StorePath())
	return nil
}

// openStore loads the configured face store for maintenance commands.
func (a *app) openStore() (*storage.FaceStore, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	backend, err := storage.OpenBackend(a.cfg.Storage.Backend, a.cfg.StorePath(), a.cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, err
	}

	store, err := storage.Load(backend, a.cfg.Storage.MaxIdentities)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

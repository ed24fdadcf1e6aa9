package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MrCodeEU/facegate/pkg/board"
	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/clock"
	"github.com/MrCodeEU/facegate/pkg/control"
	"github.com/MrCodeEU/facegate/pkg/controller"
	"github.com/MrCodeEU/facegate/pkg/enrollment"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
	"github.com/MrCodeEU/facegate/pkg/relay"
	"github.com/MrCodeEU/facegate/pkg/storage"
	"github.com/spf13/cobra"
)

// exitRestart is the exit status after a fatal POST failure. The systemd
// unit restarts the service on it.
const exitRestart = 75

type exitRestarter struct {
	code int
}

func (r exitRestarter) Restart(err error) {
	logging.WithError(err).Errorf("Restarting device service (exit %d)", r.code)
	_ = logging.Close()
	os.Exit(r.code)
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the access controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	pins, err := board.Open(cfg.Board)
	if err != nil {
		return fmt.Errorf("failed to open GPIO: %w", err)
	}
	defer pins.Close()

	clk := clock.Real{}

	deps := controller.Deps{
		Camera: camera.NewV4L2(camera.Settings{
			Device:      cfg.Camera.Device,
			Width:       cfg.Camera.Width,
			Height:      cfg.Camera.Height,
			PixelFormat: cfg.Camera.PixelFormat,
		}),
		Engine: recognition.NewDlibEngine(cfg.Recognition.MaxFaces),
		Relay:  relay.New(pins.Relay, pins.Status, clk),
		Button: enrollment.NewButton(pins.Enroll, pins.ActiveLow, cfg.Debounce(), clk),
		OpenBackend: func() (storage.Backend, error) {
			return storage.OpenBackend(cfg.Storage.Backend, cfg.StorePath(), cfg.Storage.EncryptionEnabled)
		},
		Restarter: exitRestarter{code: exitRestart},
	}

	src, err := control.Open(cfg.Control)
	if err != nil {
		logging.Component("control").WithError(err).Warn("Control channel unavailable")
	} else {
		listener := control.Listen(ctx, src, cfg.Control.EnrollToken)
		defer listener.Close()
		deps.Control = listener
	}

	return controller.New(cfg, deps).Run(ctx)
}

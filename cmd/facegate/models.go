package main

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/google/renameio"
	"github.com/spf13/cobra"
)

// dlibModels are the files go-face loads from the model directory.
var dlibModels = []struct {
	Name string
	URL  string
}{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models [dir]",
		Short: "Install the dlib models used for detection",
		Long: "Download the dlib models into dir (default: recognition.model_path).\n" +
			"Run this while provisioning the device; the controller itself never goes online.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelDir := a.cfg.Recognition.ModelPath
			if len(args) > 0 {
				modelDir = args[0]
			}
			return installModels(&http.Client{Timeout: 10 * time.Minute}, modelDir)
		},
	}
}

func installModels(client *http.Client, modelDir string) error {
	logging.Infof("Installing models to: %s", modelDir)

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, model := range dlibModels {
		targetPath := filepath.Join(modelDir, model.Name)
		if _, err := os.Stat(targetPath); err == nil {
			logging.Infof("Model %s already exists, skipping", model.Name)
			continue
		}

		logging.Infof("Downloading %s...", model.Name)
		if err := downloadAndExtract(client, model.URL, targetPath); err != nil {
			return fmt.Errorf("failed to download %s: %w", model.Name, err)
		}
	}

	logging.Infof("All models installed")
	return nil
}

func downloadAndExtract(client *http.Client, url, targetPath string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := renameio.TempFile("", targetPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Cleanup() }()

	if _, err := io.Copy(out, bzip2.NewReader(resp.Body)); err != nil {
		return err
	}
	if err := out.Chmod(0644); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

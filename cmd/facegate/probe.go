package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/recognition"
	"github.com/spf13/cobra"
)

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <image.jpg>",
		Short: "Score a reference image against the enrolled identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			engine := recognition.NewDlibEngine(a.cfg.Recognition.MaxFaces)
			if err := engine.LoadModels(a.cfg.Recognition.ModelPath); err != nil {
				return err
			}
			defer engine.Close()

			result, err := probe(engine, &camera.Frame{Data: data, Format: "JPEG"}, store.All())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Found {
				fmt.Fprintln(out, "No identities enrolled.")
				return nil
			}
			verdict := "rejected"
			if result.Accepted(a.cfg.Recognition.MatchThreshold) {
				verdict = "accepted"
			}
			fmt.Fprintf(out, "Best match: identity %d, score %.3f (threshold %.2f, %s)\n",
				result.IdentityID, result.Score, a.cfg.Recognition.MatchThreshold, verdict)
			return nil
		},
	}
}

// ErrNoFace is returned when the probe image contains no usable face.
var ErrNoFace = errors.New("no face found in image")

func probe(engine interface {
	recognition.Detector
	recognition.Extractor
}, frame *camera.Frame, identities []recognition.Identity) (recognition.MatchResult, error) {
	regions, err := engine.Detect(frame)
	if err != nil {
		return recognition.MatchResult{}, err
	}

	var embeddings []recognition.Embedding
	for _, region := range regions {
		emb, err := engine.Extract(frame, region)
		if err != nil {
			continue
		}
		embeddings = append(embeddings, emb)
	}
	if len(embeddings) == 0 {
		return recognition.MatchResult{}, ErrNoFace
	}

	return recognition.BestMatchAny(embeddings, identities), nil
}

package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/recognition"
	"github.com/MrCodeEU/facegate/pkg/storage"
)

func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	content := "storage:\n" +
		"  backend: file\n" +
		"  data_dir: " + dataDir + "\n" +
		"  encryption_enabled: false\n" + extra

	path := filepath.Join(dir, "facegate.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T, dataDir string, ids ...int) {
	t.Helper()
	b, err := storage.NewFileBackend(filepath.Join(dataDir, "faces.json"), false)
	if err != nil {
		t.Fatalf("failed to open backend: %v", err)
	}
	for _, id := range ids {
		if err := b.Append(id, []recognition.Embedding{{1, 0}, {0, 1}}, time.Now()); err != nil {
			t.Fatalf("failed to seed store: %v", err)
		}
	}
}

func TestListCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")

	out, err := execute(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No identities enrolled.") {
		t.Errorf("unexpected output: %q", out)
	}

	seedStore(t, dataDir, 1, 2)
	out, err = execute(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "Total: 2 of 7") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRemoveCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")
	seedStore(t, dataDir, 1, 2)

	out, err := execute(t, "--config", cfgPath, "remove", "1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !strings.Contains(out, "Identity 1 removed.") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := execute(t, "--config", cfgPath, "remove", "1"); !errors.Is(err, storage.ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
	if _, err := execute(t, "--config", cfgPath, "remove", "abc"); err == nil {
		t.Error("expected an error for a non-numeric id")
	}
	if _, err := execute(t, "--config", cfgPath, "remove"); err == nil {
		t.Error("expected an error without an id")
	}
}

func TestBackupCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")
	seedStore(t, dataDir, 4)
	dest := filepath.Join(t.TempDir(), "faces-backup.json")

	if _, err := execute(t, "--config", cfgPath, "backup", dest); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	b, _ := storage.NewFileBackend(dest, false)
	identities, err := b.Load()
	if err != nil || len(identities) != 1 || identities[0].ID != 4 {
		t.Errorf("unexpected backup contents: %+v, %v", identities, err)
	}
}

func TestConfigCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t, "relay:\n  pulse_duration_ms: 5000\n")

	out, err := execute(t, "--config", cfgPath, "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	for _, want := range []string{"pulse_duration_ms: 5000", "match_threshold: 0.63", "faces.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	cfgPath, _ := writeConfig(t, "enrollment:\n  captures_required: 3\n")

	if _, err := execute(t, "--config", cfgPath, "list"); err == nil {
		t.Error("expected validation to reject captures_required 3")
	}
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "list"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "FaceGate v"+version) {
		t.Errorf("unexpected output: %q", out)
	}
}

type mockEngine struct {
	faces []recognition.Embedding
}

func (m *mockEngine) Detect(frame *camera.Frame) ([]recognition.Region, error) {
	return make([]recognition.Region, len(m.faces)), nil
}

func (m *mockEngine) Extract(frame *camera.Frame, region recognition.Region) (recognition.Embedding, error) {
	return m.faces[0], nil
}

func TestProbe(t *testing.T) {
	identities := []recognition.Identity{
		{ID: 1, Embeddings: []recognition.Embedding{{0, 1}}},
		{ID: 3, Embeddings: []recognition.Embedding{{1, 0}}},
	}

	result, err := probe(&mockEngine{faces: []recognition.Embedding{{1, 0.1}}}, &camera.Frame{Data: []byte{1}}, identities)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if result.IdentityID != 3 || !result.Accepted(0.63) {
		t.Errorf("unexpected result: %+v", result)
	}

	if _, err := probe(&mockEngine{}, &camera.Frame{Data: []byte{1}}, identities); !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestInstallModels_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	for _, m := range dlibModels {
		if err := os.WriteFile(filepath.Join(dir, m.Name), []byte("model"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	if err := installModels(srv.Client(), dir); err != nil {
		t.Fatalf("installModels failed: %v", err)
	}
	if requests != 0 {
		t.Errorf("expected no downloads, got %d", requests)
	}
}

func TestDownloadAndExtract_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "model.dat")
	if err := downloadAndExtract(srv.Client(), srv.URL+"/model.dat.bz2", target); err == nil {
		t.Error("expected an error for a 404")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("expected no file after a failed download")
	}
}

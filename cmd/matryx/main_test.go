package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{Use: "t", RunE: func(*cobra.Command, []string) error { return nil }}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "config.yaml", "")
	fl.IntVar(&f.width, "width", 64, "")
	fl.IntVar(&f.height, "height", 32, "")
	fl.IntVar(&f.fps, "fps", 30, "")
	fl.StringVar(&f.sink, "sink", "ws", "")
	fl.StringVar(&f.camera, "camera", "v4l2", "")
	fl.StringVar(&f.dayScene, "day-scene", "wave", "")
	fl.BoolVar(&f.preview, "preview", false, "")
	return cmd
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display:\n  width: 16\n  fps: 12\ncamera:\n  kind: mock\n"), 0644))

	var f flags
	cmd := testCmd(&f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--fps", "50", "--sink", "terminal,ws", "--preview"}))

	cfg := loadConfig(cmd, &f)
	assert.Equal(t, 16, cfg.Display.Width, "file value kept")
	assert.Equal(t, 32, cfg.Display.Height, "default kept")
	assert.Equal(t, 50, cfg.Display.FPS, "flag wins")
	assert.Equal(t, "mock", cfg.Camera.Kind)
	assert.Equal(t, []string{"terminal", "ws"}, cfg.Sink.Kinds)
	assert.True(t, cfg.Preview.Enabled)
}

func TestMissingConfigUsesDefaults(t *testing.T) {
	var f flags
	cmd := testCmd(&f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--day-scene", "sand"}))
	cfg := loadConfig(cmd, &f)
	assert.Equal(t, 64, cfg.Display.Width)
	assert.Equal(t, "sand", cfg.Director.DayScene)
}

func TestWithCORS(t *testing.T) {
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/matryx/internal/ambient"
	"github.com/coreman2200/matryx/internal/app"
	"github.com/coreman2200/matryx/internal/config"
	"github.com/coreman2200/matryx/internal/render/scenes"
)

type flags struct {
	configPath string
	width      int
	height     int
	fps        int
	sink       string
	addr       string
	camera     string
	device     string
	preview    bool
	logLevel   string
	dayScene   string
	logFile    string

	duration time.Duration // ambient only
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:          "matryx",
		Short:        "ambient-aware generative LED matrix driver",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return runPipeline(cmd, &f) },
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "config.yaml", "path to config.yaml")
	pf.IntVar(&f.width, "width", 64, "matrix width in pixels")
	pf.IntVar(&f.height, "height", 32, "matrix height in pixels")
	pf.IntVar(&f.fps, "fps", 30, "target frames per second")
	pf.StringVar(&f.sink, "sink", "ws", "comma separated sinks: ws | strip | terminal | none")
	pf.StringVar(&f.addr, "addr", ":8080", "preview HTTP listen address")
	pf.StringVar(&f.camera, "camera", "v4l2", "ambient source: v4l2 | mock | off")
	pf.StringVar(&f.device, "device", "/dev/video0", "V4L2 device node")
	pf.BoolVar(&f.preview, "preview", false, "serve the web preview")
	pf.StringVar(&f.logLevel, "log-level", "info", "trace | debug | info | warn | error")
	pf.StringVar(&f.dayScene, "day-scene", "wave", "scene shown by day without a playlist")
	pf.StringVar(&f.logFile, "log-file", "matryx.log", "log destination while the terminal sink owns the screen")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the full pipeline (default)",
		RunE:  func(cmd *cobra.Command, args []string) error { return runPipeline(cmd, &f) },
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list registered scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range scenes.Default(0).List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	ambientCmd := &cobra.Command{
		Use:   "ambient",
		Short: "sample the camera only and plot the readings",
		RunE:  func(cmd *cobra.Command, args []string) error { return runAmbient(cmd, &f) },
	}
	ambientCmd.Flags().DurationVar(&f.duration, "duration", 30*time.Second, "how long to sample")

	rootCmd.AddCommand(runCmd, scenesCmd, ambientCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Err(err).Str("level", level).Msg("unknown log level; using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// loadConfig reads the file, then applies only the flags set on the
// command line.
func loadConfig(cmd *cobra.Command, f *flags) *config.Config {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", f.configPath).Msg("config load failed; proceeding with flags")
		}
		cfg = config.Default()
	}
	set := cmd.Flags().Changed
	if set("width") {
		cfg.Display.Width = f.width
	}
	if set("height") {
		cfg.Display.Height = f.height
	}
	if set("fps") {
		cfg.Display.FPS = f.fps
	}
	if set("sink") {
		cfg.Sink.Kinds = config.ParseKinds(f.sink)
	}
	if set("addr") {
		cfg.Preview.Addr = f.addr
	}
	if set("camera") {
		cfg.Camera.Kind = f.camera
	}
	if set("device") {
		cfg.Camera.Device = f.device
	}
	if set("preview") {
		cfg.Preview.Enabled = f.preview
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("day-scene") {
		cfg.Director.DayScene = f.dayScene
	}
	return cfg
}

func runPipeline(cmd *cobra.Command, f *flags) error {
	setupLogging(f.logLevel, os.Stdout)
	cfg := loadConfig(cmd, f)

	// ---- Logging: the terminal sink draws on the tty, so logs go to a file ----
	var out io.Writer = os.Stdout
	if slices.Contains(cfg.Sink.Kinds, "terminal") {
		lf, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer lf.Close()
		out = lf
	}
	setupLogging(cfg.LogLevel, out)

	core, err := app.InitCore(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- HTTP preview ----
	var srv *http.Server
	if core.Hub != nil {
		mux := http.NewServeMux()
		core.Hub.Routes(mux)
		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Preview.Addr).Msg("preview listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("preview server failed")
				stop()
			}
		}()
	}

	log.Info().
		Int("w", cfg.Display.Width).
		Int("h", cfg.Display.Height).
		Int("fps", cfg.Display.FPS).
		Strs("sinks", cfg.Sink.Kinds).
		Str("camera", cfg.Camera.Kind).
		Msg("matryx running")

	err = core.Run(ctx)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	log.Info().Uint64("frames", core.Dir.Frames()).Msg("shutdown complete")
	return err
}

func runAmbient(cmd *cobra.Command, f *flags) error {
	setupLogging(f.logLevel, os.Stderr)
	cfg := loadConfig(cmd, f)
	setupLogging(cfg.LogLevel, os.Stderr)
	if cfg.Camera.Kind == "off" {
		return errors.New("camera is off; pick --camera v4l2 or mock")
	}

	cfg.Sink.Kinds = nil
	cfg.Preview.Enabled = false
	cfg.MQTT.Enabled = false
	core, err := app.InitCore(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer core.Close()

	var levels []float64
	samples := make(chan ambient.Sample, 16)
	core.Mon.Observe(ambient.ObserverFunc(func(s ambient.Sample) {
		select {
		case samples <- s:
		default:
		}
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.duration)
	defer cancel()
	go func() { _ = core.Mon.Run(ctx) }()

	for done := false; !done; {
		select {
		case s := <-samples:
			levels = append(levels, float64(s.Level))
		case <-ctx.Done():
			done = true
		}
	}
	if len(levels) == 0 {
		return fmt.Errorf("no samples from %s in %s", cfg.Camera.Kind, f.duration)
	}
	graph := asciigraph.Plot(levels,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("ambient level (%d samples, night at <= %d)", len(levels), cfg.Director.NightThreshold)),
	)
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/matryx/internal/sequence"
)

type Display struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type Strip struct {
	Port          string  `yaml:"port,omitempty"` // spireg name; empty picks the first
	FreqKHz       int     `yaml:"freq_khz"`
	XFlipEveryRow bool    `yaml:"x_flip_every_row"`
	WhiteCap      float64 `yaml:"white_cap"`
	BudgetAmps    float64 `yaml:"budget_amps"`
}

type Sink struct {
	// Kinds is any of ws, strip, terminal; none or empty sends nowhere.
	Kinds []string `yaml:"kinds"`
	URL   string   `yaml:"url"`
	Strip Strip    `yaml:"strip"`
}

type Camera struct {
	Kind        string `yaml:"kind"` // v4l2 | mock | off
	Device      string `yaml:"device"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	BackoffMs   int    `yaml:"backoff_ms"`
	SampleMs    int    `yaml:"sample_ms"`
	Percentile  int    `yaml:"percentile"`
	SampleWidth int    `yaml:"sample_width"`
	// mock only: level swings between these over MockPeriodS
	MockLow     uint8 `yaml:"mock_low"`
	MockHigh    uint8 `yaml:"mock_high"`
	MockPeriodS int   `yaml:"mock_period_s"`
}

type Director struct {
	NightThreshold  uint8            `yaml:"night_threshold"`
	NightBrightness uint8            `yaml:"night_brightness"`
	DayBrightness   uint8            `yaml:"day_brightness"`
	OverlayDim      float64          `yaml:"overlay_dim"`
	HueStep         float64          `yaml:"hue_step"`
	NightDarken     float64          `yaml:"night_darken"`
	NightRedOnly    bool             `yaml:"night_red_only"`
	Overlay         string           `yaml:"overlay"`
	DayScene        string           `yaml:"day_scene"`
	Playlist        sequence.Program `yaml:"playlist,omitempty"`
}

type Preview struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MQTT struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Seed     uint64 `yaml:"seed"` // 0 seeds scenes randomly

	Display  Display  `yaml:"display"`
	Sink     Sink     `yaml:"sink"`
	Camera   Camera   `yaml:"camera"`
	Director Director `yaml:"director"`
	Preview  Preview  `yaml:"preview"`
	MQTT     MQTT     `yaml:"mqtt"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Display:  Display{Width: 64, Height: 32, FPS: 30},
		Sink: Sink{
			Kinds: []string{"ws"},
			URL:   "ws://localhost:42024/matrix",
			Strip: Strip{FreqKHz: 2500, XFlipEveryRow: true, WhiteCap: 0.85},
		},
		Camera: Camera{
			Kind:        "v4l2",
			Device:      "/dev/video0",
			Width:       640,
			Height:      480,
			BackoffMs:   5000,
			SampleMs:    500,
			Percentile:  90,
			MockLow:     5,
			MockHigh:    200,
			MockPeriodS: 120,
		},
		Director: Director{
			NightThreshold:  24,
			NightBrightness: 10,
			DayBrightness:   100,
			OverlayDim:      0.1,
			HueStep:         1,
			Overlay:         "clock",
			DayScene:        "wave",
		},
		Preview: Preview{Addr: ":8080"},
		MQTT:    MQTT{Broker: "localhost:1883", ClientID: "matryx", Prefix: "matryx"},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

var (
	sinkKinds   = map[string]bool{"ws": true, "strip": true, "terminal": true, "none": true}
	cameraKinds = map[string]bool{"v4l2": true, "mock": true, "off": true}
)

// ParseKinds splits a comma separated --sink value.
func ParseKinds(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display: size %dx%d must be positive", c.Display.Width, c.Display.Height)
	}
	if c.Display.FPS <= 0 {
		return fmt.Errorf("display: fps %d must be positive", c.Display.FPS)
	}
	for _, k := range c.Sink.Kinds {
		if !sinkKinds[k] {
			return fmt.Errorf("sink: unknown kind %q", k)
		}
	}
	if !cameraKinds[c.Camera.Kind] {
		return fmt.Errorf("camera: unknown kind %q", c.Camera.Kind)
	}
	if c.Camera.Percentile < 0 || c.Camera.Percentile > 100 {
		return fmt.Errorf("camera: percentile %d outside 0..100", c.Camera.Percentile)
	}
	if c.Director.DayBrightness > 100 || c.Director.NightBrightness > 100 {
		return fmt.Errorf("director: brightness is 0..100")
	}
	if len(c.Director.Playlist.Clips) > 0 {
		if err := c.Director.Playlist.Validate(); err != nil {
			return fmt.Errorf("director: playlist: %w", err)
		}
	}
	return nil
}

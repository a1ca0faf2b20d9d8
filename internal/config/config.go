package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"priceline/internal/chart"
	"priceline/internal/overlay"
)

type Config struct {
	Port             int           `yaml:"port"`
	LogLevel         string        `yaml:"log_level"`
	Symbol           string        `yaml:"symbol"`
	GatewayURL       string        `yaml:"gateway_url"`
	SessionStorePath string        `yaml:"session_store_path"`
	WebDir           string        `yaml:"web_dir"`
	UpdateIntervalMS int           `yaml:"update_interval_ms"`
	BarSeconds       int           `yaml:"bar_seconds"`
	Levels           int           `yaml:"levels"`
	Display          DisplayConfig `yaml:"display"`
	Chart            ChartConfig   `yaml:"chart"`
}

// DisplayConfig is the user-facing styling of the three lines.
type DisplayConfig struct {
	BarsBefore int    `yaml:"bars_before"`
	BarsAfter  int    `yaml:"bars_after"`
	BidColor   string `yaml:"bid_color"`
	AskColor   string `yaml:"ask_color"`
	PriceColor string `yaml:"price_color"`
	LineWidth  int    `yaml:"line_width"`
}

// ChartConfig is the initial viewport of the chart host.
type ChartConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	BarSpacing float64 `yaml:"bar_spacing"`
	MarginBars int     `yaml:"margin_bars"`
	PriceSpan  float64 `yaml:"price_span"`
}

func defaults() Config {
	return Config{
		Port:             8087,
		LogLevel:         "info",
		Symbol:           "",
		GatewayURL:       "https://127.0.0.1:5000",
		SessionStorePath: "./data/session.json",
		WebDir:           "./web",
		UpdateIntervalMS: 200,
		BarSeconds:       60,
		Levels:           10,
		Display: DisplayConfig{
			BarsBefore: 5,
			BarsAfter:  2,
			BidColor:   "red",
			AskColor:   "blue",
			PriceColor: "cyan",
			LineWidth:  2,
		},
		Chart: ChartConfig{
			Width:      1200,
			Height:     600,
			BarSpacing: 8,
			MarginBars: 10,
			PriceSpan:  2,
		},
	}
}

// Default returns the built-in configuration.
func Default() Config { return defaults() }

// Load reads path over the defaults and applies PRICELINE_* environment
// overrides. A missing file is not an error; the defaults are used.
func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.GatewayURL, "PRICELINE_GATEWAY_URL")
	setStr(&cfg.Symbol, "PRICELINE_SYMBOL")
	setStr(&cfg.LogLevel, "PRICELINE_LOG_LEVEL")
	setStr(&cfg.SessionStorePath, "PRICELINE_SESSION_STORE_PATH")
	if v := os.Getenv("PRICELINE_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICELINE_PORT: %w", err)
		}
		cfg.Port = n
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port")
	}
	if c.Interval() < overlay.MinInterval {
		return fmt.Errorf("update_interval_ms must be >=%d", overlay.MinInterval.Milliseconds())
	}
	if c.BarSeconds < 1 {
		return errors.New("bar_seconds must be >=1")
	}
	if c.Levels < 1 {
		return errors.New("levels must be >=1")
	}
	if _, err := c.Overlay(); err != nil {
		return err
	}
	if c.Chart.Width < 1 || c.Chart.Height < 1 {
		return errors.New("chart width and height must be >=1")
	}
	if c.Chart.BarSpacing <= 0 {
		return errors.New("chart bar_spacing must be >0")
	}
	if c.Chart.MarginBars < 0 {
		return errors.New("chart margin_bars must be >=0")
	}
	if c.Chart.PriceSpan <= 0 {
		return errors.New("chart price_span must be >0")
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

func (c Config) BarPeriod() time.Duration {
	return time.Duration(c.BarSeconds) * time.Second
}

// Overlay converts the display section into the overlay's config.
func (c Config) Overlay() (overlay.DisplayConfig, error) {
	d := overlay.DisplayConfig{
		BarsBefore: c.Display.BarsBefore,
		BarsAfter:  c.Display.BarsAfter,
		LineWidth:  c.Display.LineWidth,
	}
	var err error
	if d.BidColor, err = overlay.ParseColor(c.Display.BidColor); err != nil {
		return d, fmt.Errorf("bid_color: %w", err)
	}
	if d.AskColor, err = overlay.ParseColor(c.Display.AskColor); err != nil {
		return d, fmt.Errorf("ask_color: %w", err)
	}
	if d.PriceColor, err = overlay.ParseColor(c.Display.PriceColor); err != nil {
		return d, fmt.Errorf("price_color: %w", err)
	}
	return d, d.Validate()
}

// Viewport is the chart's starting view; the price range is recentered on
// the first price seen.
func (c Config) Viewport(now time.Time) chart.Viewport {
	period := c.BarPeriod()
	return chart.Viewport{
		Width:      float64(c.Chart.Width),
		Height:     float64(c.Chart.Height),
		BarSpacing: c.Chart.BarSpacing,
		BarPeriod:  period,
		RightEdge:  now.Truncate(period).Add(time.Duration(c.Chart.MarginBars) * period),
		PriceHigh:  c.Chart.PriceSpan,
		PriceLow:   0,
	}
}

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

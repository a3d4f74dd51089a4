package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/style"
	"github.com/menta2k/image-annotator/pkg/suggest"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

// EnvPrefix prefixes environment overrides, e.g. ANNOTATOR_SUGGEST_MODEL
const EnvPrefix = "ANNOTATOR"

// Config holds the application configuration
type Config struct {
	Style    style.LabelStyle `mapstructure:"style"`
	Viewport ViewportConfig   `mapstructure:"viewport"`
	Stage    StageConfig      `mapstructure:"stage"`
	Draw     DrawConfig       `mapstructure:"draw"`
	Layout   LayoutConfig     `mapstructure:"layout"`
	Suggest  SuggestConfig    `mapstructure:"suggest"`
	Bridge   BridgeConfig     `mapstructure:"bridge"`
	Log      LogConfig        `mapstructure:"log"`
	Output   OutputConfig     `mapstructure:"output"`
}

// ViewportConfig holds the zoom limits and wheel factors
type ViewportConfig struct {
	MinScale float64 `mapstructure:"min_scale"`
	MaxScale float64 `mapstructure:"max_scale"`
	ZoomIn   float64 `mapstructure:"zoom_in"`
	ZoomOut  float64 `mapstructure:"zoom_out"`
}

// StageConfig is the container size used when no window provides one
type StageConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// DrawConfig holds the smallest accepted rectangles in display pixels
type DrawConfig struct {
	MinSize          float64 `mapstructure:"min_size"`
	MinTransformSize float64 `mapstructure:"min_transform_size"`
}

// LayoutConfig holds the debounce delays
type LayoutConfig struct {
	LabelDelay  time.Duration `mapstructure:"label_delay"`
	ResizeDelay time.Duration `mapstructure:"resize_delay"`
}

// SuggestConfig holds configuration for model pre-annotation
type SuggestConfig struct {
	Backend       string  `mapstructure:"backend"`
	URL           string  `mapstructure:"url"`
	Model         string  `mapstructure:"model"`
	Prompt        string  `mapstructure:"prompt"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	MaxObjects    int     `mapstructure:"max_objects"`
	MaxDim        int     `mapstructure:"max_dim"`
	Quality       int     `mapstructure:"quality"`
	Format        string  `mapstructure:"format"`
}

// BridgeConfig holds configuration for the host bridge
type BridgeConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// OutputConfig holds configuration for overlay and crop output
type OutputConfig struct {
	DefaultFormat string  `mapstructure:"default_format"`
	OutputDir     string  `mapstructure:"output_dir"`
	Prefix        string  `mapstructure:"prefix"`
	Suffix        string  `mapstructure:"suffix"`
	Quality       int     `mapstructure:"quality"`
	Lossless      bool    `mapstructure:"lossless"`
	PaddingRatio  float64 `mapstructure:"padding_ratio"`
	Aspect        string  `mapstructure:"aspect"`
}

// Default returns a configuration with default values
func Default() *Config {
	vp := viewport.DefaultConfig()
	return &Config{
		Style: style.Default(),
		Viewport: ViewportConfig{
			MinScale: vp.MinScale,
			MaxScale: vp.MaxScale,
			ZoomIn:   vp.ZoomIn,
			ZoomOut:  vp.ZoomOut,
		},
		Stage: StageConfig{
			Width:  1280,
			Height: 720,
		},
		Draw: DrawConfig{
			MinSize:          5,
			MinTransformSize: 3,
		},
		Layout: LayoutConfig{
			LabelDelay:  200 * time.Millisecond,
			ResizeDelay: 200 * time.Millisecond,
		},
		Suggest: SuggestConfig{
			Backend:       "ollama",
			URL:           "http://localhost:11434",
			Model:         "minicpm-v",
			MinConfidence: 0.3,
			MaxObjects:    50,
			MaxDim:        1024,
			Quality:       85,
			Format:        "jpg",
		},
		Bridge: BridgeConfig{
			Addr: ":8090",
			Mode: "release",
		},
		Log: LogConfig{
			Mode: "debug",
		},
		Output: OutputConfig{
			DefaultFormat: "jpg",
			OutputDir:     "./output",
			Suffix:        "_annotated",
			Quality:       90,
		},
	}
}

// ViewportSettings converts the viewport section for the engine
func (c *Config) ViewportSettings() viewport.Config {
	return viewport.Config{
		MinScale: c.Viewport.MinScale,
		MaxScale: c.Viewport.MaxScale,
		ZoomIn:   c.Viewport.ZoomIn,
		ZoomOut:  c.Viewport.ZoomOut,
	}
}

// EngineOptions returns the engine options derived from the configuration
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithStyle(c.Style),
		engine.WithViewport(c.ViewportSettings()),
		engine.WithDebounce(c.Layout.LabelDelay, c.Layout.ResizeDelay),
		engine.WithMinSizes(c.Draw.MinSize, c.Draw.MinTransformSize),
	}
}

// SuggestSettings converts the suggest section for the suggester
func (c *Config) SuggestSettings() suggest.Config {
	return suggest.Config{
		Model:         c.Suggest.Model,
		Prompt:        c.Suggest.Prompt,
		MinConfidence: c.Suggest.MinConfidence,
		MaxObjects:    c.Suggest.MaxObjects,
		MaxDim:        c.Suggest.MaxDim,
		Quality:       c.Suggest.Quality,
		Format:        c.Suggest.Format,
	}
}

// OutputSettings converts the output section for crop and overlay export. An
// invalid aspect is treated as free; Validate reports it.
func (c *Config) OutputSettings() export.Options {
	aspect, _ := export.ParseAspect(c.Output.Aspect)
	return export.Options{
		Format:       c.Output.DefaultFormat,
		Quality:      c.Output.Quality,
		Lossless:     c.Output.Lossless,
		Prefix:       c.Output.Prefix,
		PaddingRatio: c.Output.PaddingRatio,
		Aspect:       aspect,
		MinSize:      1,
	}
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, defaults)
	return v
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("style.color", c.Style.Color)
	v.SetDefault("style.fill_opacity", c.Style.FillOpacity)
	v.SetDefault("style.select_opacity", c.Style.SelectOpacity)
	v.SetDefault("style.font_size", c.Style.FontSize)
	v.SetDefault("style.stroke_width", c.Style.StrokeWidth)
	v.SetDefault("style.text_gap", c.Style.TextGap)

	v.SetDefault("viewport.min_scale", c.Viewport.MinScale)
	v.SetDefault("viewport.max_scale", c.Viewport.MaxScale)
	v.SetDefault("viewport.zoom_in", c.Viewport.ZoomIn)
	v.SetDefault("viewport.zoom_out", c.Viewport.ZoomOut)

	v.SetDefault("stage.width", c.Stage.Width)
	v.SetDefault("stage.height", c.Stage.Height)

	v.SetDefault("draw.min_size", c.Draw.MinSize)
	v.SetDefault("draw.min_transform_size", c.Draw.MinTransformSize)

	v.SetDefault("layout.label_delay", c.Layout.LabelDelay)
	v.SetDefault("layout.resize_delay", c.Layout.ResizeDelay)

	v.SetDefault("suggest.backend", c.Suggest.Backend)
	v.SetDefault("suggest.url", c.Suggest.URL)
	v.SetDefault("suggest.model", c.Suggest.Model)
	v.SetDefault("suggest.prompt", c.Suggest.Prompt)
	v.SetDefault("suggest.min_confidence", c.Suggest.MinConfidence)
	v.SetDefault("suggest.max_objects", c.Suggest.MaxObjects)
	v.SetDefault("suggest.max_dim", c.Suggest.MaxDim)
	v.SetDefault("suggest.quality", c.Suggest.Quality)
	v.SetDefault("suggest.format", c.Suggest.Format)

	v.SetDefault("bridge.addr", c.Bridge.Addr)
	v.SetDefault("bridge.mode", c.Bridge.Mode)

	v.SetDefault("log.mode", c.Log.Mode)

	v.SetDefault("output.default_format", c.Output.DefaultFormat)
	v.SetDefault("output.output_dir", c.Output.OutputDir)
	v.SetDefault("output.prefix", c.Output.Prefix)
	v.SetDefault("output.suffix", c.Output.Suffix)
	v.SetDefault("output.quality", c.Output.Quality)
	v.SetDefault("output.lossless", c.Output.Lossless)
	v.SetDefault("output.padding_ratio", c.Output.PaddingRatio)
	v.SetDefault("output.aspect", c.Output.Aspect)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a YAML, JSON or TOML file. Keys the
// file leaves out keep their defaults; environment variables override both.
func LoadFromFile(filename string) (*Config, error) {
	v := newViper(Default())
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// Load loads filename when it exists and falls back to defaults plus
// environment overrides otherwise.
func Load(filename string) (*Config, error) {
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			return LoadFromFile(filename)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return decode(newViper(Default()))
}

// SaveToFile saves configuration in the format implied by the file extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, c)
	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Style.Validate(); err != nil {
		return fmt.Errorf("style: %w", err)
	}

	if c.Viewport.MinScale <= 0 || c.Viewport.MaxScale < c.Viewport.MinScale {
		return fmt.Errorf("viewport scale limits must satisfy 0 < min_scale <= max_scale")
	}

	if c.Viewport.ZoomIn <= 1 || c.Viewport.ZoomOut <= 0 || c.Viewport.ZoomOut >= 1 {
		return fmt.Errorf("viewport.zoom_in must exceed 1 and viewport.zoom_out must be in (0,1)")
	}

	if c.Stage.Width <= 0 || c.Stage.Height <= 0 {
		return fmt.Errorf("stage width and height must be positive")
	}

	if c.Draw.MinSize <= 0 || c.Draw.MinTransformSize <= 0 {
		return fmt.Errorf("draw sizes must be positive")
	}

	if c.Layout.LabelDelay < 0 || c.Layout.ResizeDelay < 0 {
		return fmt.Errorf("layout delays cannot be negative")
	}

	switch c.Suggest.Backend {
	case "", suggest.BackendOllama, suggest.BackendLlamaCpp, suggest.BackendSaliency:
	default:
		return fmt.Errorf("suggest.backend must be ollama, llamacpp or saliency, got %q", c.Suggest.Backend)
	}

	if c.Suggest.MinConfidence < 0 || c.Suggest.MinConfidence > 1 {
		return fmt.Errorf("suggest.min_confidence must be between 0 and 1")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.PaddingRatio < 0 || c.Output.PaddingRatio > 1 {
		return fmt.Errorf("output.padding_ratio must be between 0 and 1")
	}

	if _, err := export.ParseAspect(c.Output.Aspect); err != nil {
		return fmt.Errorf("output.aspect: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.yaml")
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Config holds all configurable paths and render settings for nortview.
type Config struct {
	// Paths
	ModelPath string            `json:"model_path"`
	ClipPaths map[string]string `json:"clip_paths"`
	OutputDir string            `json:"output_dir"`

	// Playback
	Clip          string          `json:"clip"`
	LoopOverrides map[string]bool `json:"loop_overrides"`

	// Render settings
	Frames      int     `json:"frames"`
	FPS         float64 `json:"fps"`
	RenderSize  int     `json:"render_size"`
	Supersample int     `json:"supersample"`
	Workers     int     `json:"workers"`
}

// LoadConfig reads a JSON config file. Fields not set in the file keep their
// zero values until Resolve fills in defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	ModelPath   string
	OutputDir   string
	Clip        string
	Frames      int
	FPS         float64
	RenderSize  int
	Supersample int
	Workers     int
}

// Resolve applies flag overrides and fills remaining empty fields with
// defaults. CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.ModelPath != "" {
		c.ModelPath = flags.ModelPath
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Clip != "" {
		c.Clip = flags.Clip
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.FPS > 0 {
		c.FPS = flags.FPS
	}
	if flags.RenderSize > 0 {
		c.RenderSize = flags.RenderSize
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.OutputDir == "" {
		c.OutputDir = "frames"
	}
	if c.Frames <= 0 {
		c.Frames = 60
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.RenderSize <= 0 {
		c.RenderSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

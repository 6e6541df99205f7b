package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pelletier/go-toml/v2"

	com "vulkan_render_base/common"
)

// Config gathers everything adjustable without recompiling. Values resolve in
// three layers: compiled in defaults, an optional TOML file and command line
// flags, each layer overriding the one before it.
type Config struct {
	Title   string `toml:"title"`
	Width   int32  `toml:"width"`
	Height  int32  `toml:"height"`
	Backend string `toml:"backend"`

	AssetDir      string `toml:"asset_dir"`
	PipelineCache string `toml:"pipeline_cache"`

	Wireframe  bool `toml:"wireframe"`
	Validation bool `toml:"validation"`
}

func DefaultConfig() Config {
	return Config{
		Title:         PROGRAM_NAME,
		Width:         1280,
		Height:        720,
		Backend:       com.BACKEND_SDL,
		AssetDir:      "assets",
		PipelineCache: "pipeline_cache.bin",
		Wireframe:     false,
		Validation:    true,
	}
}

// LoadConfig resolves the effective configuration from the given command line
// arguments, usually os.Args[1:].
func LoadConfig(args []string) (Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet(PROGRAM_NAME, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a TOML config file")
	backend := fs.String("backend", cfg.Backend, "window backend, sdl or glfw")
	assets := fs.String("assets", cfg.AssetDir, "directory holding the compiled shaders and the texture")
	wireframe := fs.Bool("wireframe", cfg.Wireframe, "start in wireframe mode")
	validation := fs.Bool("validation", cfg.Validation, "request vulkan validation layers")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file '%s': %w", *configPath, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file '%s': %w", *configPath, err)
		}
		log.Printf("Loaded configuration from '%s'", *configPath)
	}

	// Only flags stated explicitly on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "assets":
			cfg.AssetDir = *assets
		case "wireframe":
			cfg.Wireframe = *wireframe
		case "validation":
			cfg.Validation = *validation
		}
	})
	return cfg, nil
}

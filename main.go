package main

import (
	"log"
	"os"
	"runtime"
	"time"

	"github.com/xlab/closer"

	com "vulkan_render_base/common"
	"vulkan_render_base/renderer"
)

const PROGRAM_NAME = "Vulkan render base"

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)
	log.Printf("Starting %s", PROGRAM_NAME)
	log.Printf("Using GoLang: [%s]", runtime.Version())

	// SDL and GLFW both expect their event loop on the main thread.
	runtime.LockOSThread()
}

func main() {
	defer closer.Close()

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		com.Fatal(err)
	}

	core, err := renderer.NewCore(renderer.Options{
		Title:      cfg.Title,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Backend:    cfg.Backend,
		AssetDir:   cfg.AssetDir,
		CacheFile:  cfg.PipelineCache,
		Wireframe:  cfg.Wireframe,
		Validation: cfg.Validation,
	})
	if err != nil {
		com.Fatal(err)
	}
	closer.Bind(core.Destroy)

	err = core.Loop(func(dt time.Duration, c *renderer.Core) {
		c.Scene().Animate(dt)
	})
	if err != nil {
		com.Fatal(err, core.Destroy)
	}
}

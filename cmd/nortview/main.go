// nortview renders animation frames of a GLB/glTF asset to WebP images: it
// loads a model plus optional clip files, plays one clip on a software
// animator, and rasterizes every frame headlessly.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/animator"
	"github.com/rholdorf/nort/engine/loader"
	"github.com/rholdorf/nort/engine/preview"
	"github.com/rholdorf/nort/engine/profiler"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	modelPath := flag.String("model", "", "Path to the .glb/.gltf model file")
	outputDir := flag.String("output", "", "Output directory (default: frames)")
	clipName := flag.String("clip", "", "Clip to play (default: first clip)")
	frames := flag.Int("frames", 0, "Number of frames to render (default: 60)")
	fps := flag.Float64("fps", 0, "Playback rate in frames per second (default: 30)")
	size := flag.Int("size", 0, "Output image size in pixels (default: 256)")
	supersample := flag.Int("supersample", 0, "Supersampling factor (default: 2)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")

	flag.Parse()

	var cfg Config
	if *configFile != "" {
		var err error
		cfg, err = LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(Flags{
		ModelPath:   *modelPath,
		OutputDir:   *outputDir,
		Clip:        *clipName,
		Frames:      *frames,
		FPS:         *fps,
		RenderSize:  *size,
		Supersample: *supersample,
		Workers:     *workers,
	})

	if cfg.ModelPath == "" {
		fmt.Fprintln(os.Stderr, "Error: no model file. Use -model or config.json.")
		os.Exit(1)
	}

	start := time.Now()

	ld := loader.NewLoader(
		loader.WithLoopOverrides(cfg.LoopOverrides),
		loader.WithWorkers(cfg.Workers),
	)
	asset, report, err := ld.LoadAsset(cfg.ModelPath, cfg.ClipPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading asset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %q: %d bones, %d mesh parts, %d clips\n",
		asset.Name, len(asset.Skeleton.Bones), len(asset.MeshParts), len(asset.Clips))
	if report.SkippedChannels > 0 || report.SkippedJoints > 0 {
		fmt.Printf("Skipped: %d channels, %d joints\n", report.SkippedChannels, report.SkippedJoints)
	}
	if report.GeneratedNormals > 0 {
		fmt.Printf("Generated normals for %d primitives\n", report.GeneratedNormals)
	}

	clip := cfg.Clip
	if clip == "" && len(asset.Clips) > 0 {
		clip = asset.Clips[0].Name
	}
	if clip != "" {
		if _, ok := asset.ClipByName(clip); !ok {
			fmt.Fprintf(os.Stderr, "Error: clip %q not found in asset\n", clip)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// Phase 1: step the animator sequentially, snapshotting each frame's
	// skin matrices. Playback state is inherently ordered; rendering is not.
	anim := animator.NewAnimator(asset)
	if clip != "" {
		anim.Play(clip, true)
	}
	dt := float32(1 / cfg.FPS)

	frameMatrices := make([][]mgl32.Mat4, cfg.Frames)
	for i := 0; i < cfg.Frames; i++ {
		if i > 0 {
			anim.Update(dt)
		}
		frameMatrices[i] = append([]mgl32.Mat4(nil), anim.SkinTransforms()...)
	}

	// Phase 2: rasterize and encode frames in parallel. Each task owns its
	// renderer; the asset is shared read-only.
	type frameResult struct {
		err error
	}
	results := make([]frameResult, cfg.Frames)
	prof := profiler.NewProfiler()

	pool := worker.NewDynamicWorkerPool(cfg.Workers, 256, 1*time.Second)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Frames; i++ {
		wg.Add(1)
		frameIdx := i
		pool.SubmitTask(worker.Task{
			ID: frameIdx,
			Do: func() (any, error) {
				defer wg.Done()
				r := preview.NewRenderer(
					preview.WithSize(cfg.RenderSize),
					preview.WithSupersample(cfg.Supersample),
				)
				img := r.RenderFrame(asset, frameMatrices[frameIdx])
				results[frameIdx].err = writeFrame(cfg.OutputDir, frameIdx, img)
				prof.Tick()
				return nil, results[frameIdx].err
			},
		})
	}
	wg.Wait()
	pool.Stop()

	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, res.err)
		}
	}

	fmt.Printf("Rendered %d/%d frames to %s in %s\n",
		cfg.Frames-failed, cfg.Frames, cfg.OutputDir, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		os.Exit(1)
	}
}

func writeFrame(dir string, idx int, img *image.NRGBA) error {
	return preview.SaveWebP(filepath.Join(dir, fmt.Sprintf("frame_%04d.webp", idx)), img)
}

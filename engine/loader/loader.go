// Package loader imports GLB/glTF 2.0 assets into the runtime model: a
// skeleton, skinned mesh parts, and animation clips. Model and clip files
// are parsed independently; clip channel targets are resolved against the
// model's skeleton by bone name.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/rholdorf/nort/engine/model"
	"github.com/rholdorf/nort/engine/texture"
)

// loaderImpl is the implementation of the Loader interface.
type loaderImpl struct {
	bindSource    InverseBindSource
	loopOverrides map[string]bool
	workers       int
	cache         *texture.Cache

	// clipPool manages a bounded set of reusable goroutines for parallel
	// clip-file loads. It is created once and shared across every load on
	// this loader; idle workers time out on their own.
	clipPool worker.DynamicWorkerPool
}

// Loader defines the public interface for importing assets. A Loader is
// stateless apart from its texture cache and safe to reuse across assets.
type Loader interface {
	// LoadAsset imports a model file plus a set of clip files into an
	// immutable asset bundle. Clip files are loaded in parallel on a worker
	// pool; each is expected to carry at least one animation, and its first
	// animation is imported under the caller's key.
	//
	// Parameters:
	//   - modelPath: path to the .glb/.gltf model file (skeleton + meshes,
	//     plus any embedded clips)
	//   - clipPathsByName: clip name -> clip file path (may be nil)
	//
	// Returns:
	//   - *model.Asset: the loaded asset
	//   - *model.LoadReport: non-fatal diagnostics
	//   - error: format error; no partial asset is returned
	LoadAsset(modelPath string, clipPathsByName map[string]string) (*model.Asset, *model.LoadReport, error)

	// LoadAssetBytes is LoadAsset over in-memory buffers. The asset may
	// reference the model buffer (GLB binary chunk views), so the caller
	// must not mutate it afterwards.
	//
	// Parameters:
	//   - name: the asset name
	//   - modelData: the model file bytes
	//   - clipsByName: clip name -> clip file bytes (may be nil)
	//
	// Returns:
	//   - *model.Asset: the loaded asset
	//   - *model.LoadReport: non-fatal diagnostics
	//   - error: format error; no partial asset is returned
	LoadAssetBytes(name string, modelData []byte, clipsByName map[string][]byte) (*model.Asset, *model.LoadReport, error)
}

var _ Loader = &loaderImpl{}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderImpl)

// WithInverseBindSource selects how inverse-bind matrices are derived
// (hierarchy-derived by default).
func WithInverseBindSource(source InverseBindSource) LoaderOption {
	return func(l *loaderImpl) {
		l.bindSource = source
	}
}

// WithLoopOverrides sets per-clip-name loop flag overrides, replacing the
// name-convention default.
func WithLoopOverrides(overrides map[string]bool) LoaderOption {
	return func(l *loaderImpl) {
		l.loopOverrides = overrides
	}
}

// WithWorkers sets the worker count for parallel clip loading. Defaults to
// the CPU count.
func WithWorkers(workers int) LoaderOption {
	return func(l *loaderImpl) {
		if workers > 0 {
			l.workers = workers
		}
	}
}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: optional configuration
//
// Returns:
//   - Loader: a new loader instance
func NewLoader(options ...LoaderOption) Loader {
	l := &loaderImpl{
		bindSource: InverseBindHierarchy,
		workers:    runtime.NumCPU(),
		cache:      texture.NewCache(),
	}
	for _, option := range options {
		option(l)
	}
	l.clipPool = worker.NewDynamicWorkerPool(l.workers, 256, 1*time.Second)
	return l
}

func (l *loaderImpl) LoadAsset(modelPath string, clipPathsByName map[string]string) (*model.Asset, *model.LoadReport, error) {
	clipsByName := make(map[string][]byte, len(clipPathsByName))
	for name, path := range clipPathsByName {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("clip %q: failed to read file: %w", name, err)
		}
		clipsByName[name] = data
	}

	name := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	return l.loadAsset(name, modelPath, nil, clipsByName)
}

func (l *loaderImpl) LoadAssetBytes(name string, modelData []byte, clipsByName map[string][]byte) (*model.Asset, *model.LoadReport, error) {
	return l.loadAsset(name, "", modelData, clipsByName)
}

func (l *loaderImpl) loadAsset(name, modelPath string, modelData []byte, clipsByName map[string][]byte) (*model.Asset, *model.LoadReport, error) {
	report := &model.LoadReport{}

	parser := newGLTFParser()
	if modelPath != "" {
		if err := parser.Parse(modelPath); err != nil {
			return nil, nil, fmt.Errorf("model: %w", err)
		}
	} else {
		if err := parser.ParseBytes(modelData, looksLikeGLB(modelData)); err != nil {
			return nil, nil, fmt.Errorf("model: %w", err)
		}
	}

	skeleton, nodeToBone, err := newGLTFSkeletonExtractor(parser, l.bindSource).ExtractSkeleton()
	if err != nil {
		return nil, nil, fmt.Errorf("skeleton: %w", err)
	}

	materials, err := newGLTFMaterialExtractor(parser, l.cache).ExtractAllMaterials()
	if err != nil {
		return nil, nil, fmt.Errorf("materials: %w", err)
	}

	meshParts, err := newGLTFMeshExtractor(parser).ExtractMeshParts(nodeToBone, materials, report)
	if err != nil {
		return nil, nil, fmt.Errorf("meshes: %w", err)
	}

	// Clips embedded in the model document come first, under their own
	// names. A model with no animations is fine; the zero-animation hard
	// failure applies to dedicated clip files only.
	clips, err := newGLTFClipExtractor(parser).ExtractClips(skeleton, l.loopOverrides, report)
	if err != nil {
		return nil, nil, fmt.Errorf("model clips: %w", err)
	}

	fileClips, err := l.loadClipFiles(skeleton, clipsByName, report)
	if err != nil {
		return nil, nil, err
	}
	clips = append(clips, fileClips...)

	asset := &model.Asset{
		Name:      name,
		Skeleton:  skeleton,
		MeshParts: meshParts,
		Clips:     clips,
	}
	asset.InternClips()

	return asset, report, nil
}

// clipLoadResult carries one clip file's outcome back from the worker pool.
type clipLoadResult struct {
	clip   *model.AnimationClip
	report model.LoadReport
	err    error
}

// loadClipFiles parses and extracts every clip file on a worker pool. Clip
// parsing is a pure transformation of an immutable byte buffer, so tasks
// share nothing but the read-only skeleton. Results are collected in sorted
// name order to keep loads deterministic.
func (l *loaderImpl) loadClipFiles(skeleton *model.Skeleton, clipsByName map[string][]byte, report *model.LoadReport) ([]*model.AnimationClip, error) {
	if len(clipsByName) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(clipsByName))
	for name := range clipsByName {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]clipLoadResult, len(names))

	var wg sync.WaitGroup
	for i, clipName := range names {
		wg.Add(1)
		slot := &results[i]
		name := clipName
		data := clipsByName[clipName]
		l.clipPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				slot.clip, slot.err = l.loadClipFile(skeleton, name, data, &slot.report)
				return nil, slot.err
			},
		})
	}
	wg.Wait()

	clips := make([]*model.AnimationClip, 0, len(names))
	for i, result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("clip %q: %w", names[i], result.err)
		}
		clips = append(clips, result.clip)
		report.SkippedChannels += result.report.SkippedChannels
		report.SkippedJoints += result.report.SkippedJoints
	}

	return clips, nil
}

// loadClipFile parses one clip document and imports its first animation
// under the caller's clip name. A clip document with zero animations is a
// format error.
func (l *loaderImpl) loadClipFile(skeleton *model.Skeleton, name string, data []byte, report *model.LoadReport) (*model.AnimationClip, error) {
	parser := newGLTFParser()
	if err := parser.ParseBytes(data, looksLikeGLB(data)); err != nil {
		return nil, err
	}

	doc := parser.Document()
	if len(doc.Animations) == 0 {
		return nil, errNoAnimations
	}

	clips, err := newGLTFClipExtractor(parser).ExtractClips(skeleton, l.loopOverrides, report)
	if err != nil {
		return nil, err
	}

	clip := clips[0]
	clip.Name = name
	clip.Loop = clipLoopDefault(name)
	if l.loopOverrides != nil {
		if v, ok := l.loopOverrides[name]; ok {
			clip.Loop = v
		}
	}
	return clip, nil
}

// looksLikeGLB sniffs the GLB magic at the start of a buffer.
func looksLikeGLB(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 'g' && data[1] == 'l' && data[2] == 'T' && data[3] == 'F'
}

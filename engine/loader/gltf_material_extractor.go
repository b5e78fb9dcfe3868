package loader

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/rholdorf/nort/engine/model"
	"github.com/rholdorf/nort/engine/texture"
)

// gltfMaterialExtractorImpl is the implementation of the
// gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser
	cache  *texture.Cache
}

// gltfMaterialExtractor defines the interface for extracting material data
// from a parsed glTF document. Texture pixel decoding is delegated to the
// texture package; a missing or undecodable texture resolves to nil (treated
// as flat white by renderers), never an error.
type gltfMaterialExtractor interface {
	// ExtractAllMaterials extracts all materials from the document.
	//
	// Returns:
	//   - []model.Material: all materials, indexed as in the document
	//   - error: error if a document reference is structurally invalid
	ExtractAllMaterials() ([]model.Material, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a parsed
// document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//   - cache: the decoded-texture cache, shared across extractions
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser, cache *texture.Cache) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, cache: cache}
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]model.Material, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	materials := make([]model.Material, len(doc.Materials))
	for i := range doc.Materials {
		mat, err := e.extractMaterial(i)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		materials[i] = mat
	}

	return materials, nil
}

func (e *gltfMaterialExtractorImpl) extractMaterial(materialIndex int) (model.Material, error) {
	doc := e.parser.Document()
	mat := &doc.Materials[materialIndex]

	result := model.Material{
		Name:      mat.Name,
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("material_%d", materialIndex)
	}

	pbr := mat.PbrMetallicRoughness
	if pbr == nil {
		return result, nil
	}

	if pbr.BaseColorFactor != nil {
		result.BaseColor = mgl32.Vec4(*pbr.BaseColorFactor)
	}

	if pbr.BaseColorTexture != nil {
		img, err := e.resolveTexture(pbr.BaseColorTexture.Index)
		if err != nil {
			return model.Material{}, fmt.Errorf("base color texture: %w", err)
		}
		result.Texture = img
	}

	return result, nil
}

// resolveTexture resolves a texture index into decoded pixels. Structural
// errors (out-of-range references, unreadable bufferViews) are returned;
// missing files and undecodable payloads resolve to nil.
func (e *gltfMaterialExtractorImpl) resolveTexture(textureIndex int) (img *image.NRGBA, err error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}

	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, nil
	}
	imageIndex := *tex.Source
	if imageIndex < 0 || imageIndex >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imageIndex)
	}

	docImg := &doc.Images[imageIndex]
	key := fmt.Sprintf("image_%d", imageIndex)

	// Embedded in a bufferView (the common GLB case).
	if docImg.BufferView != nil {
		data, err := e.parser.ReadBufferViewRaw(*docImg.BufferView)
		if err != nil {
			return nil, fmt.Errorf("image buffer view: %w", err)
		}
		return e.decodeLenient(key, data), nil
	}

	// Inline base64 data URI.
	if strings.HasPrefix(docImg.URI, "data:") {
		data, _, err := gltfDecodeDataURI(docImg.URI)
		if err != nil {
			return nil, fmt.Errorf("image data URI: %w", err)
		}
		return e.decodeLenient(key, data), nil
	}

	// External file reference, resolved relative to the document.
	if docImg.URI != "" {
		data, err := os.ReadFile(filepath.Join(e.parser.BaseDir(), docImg.URI))
		if err != nil {
			return nil, nil
		}
		return e.decodeLenient(docImg.URI, data), nil
	}

	return nil, nil
}

// decodeLenient decodes through the cache, swallowing decode failures.
func (e *gltfMaterialExtractorImpl) decodeLenient(key string, data []byte) *image.NRGBA {
	img, err := e.cache.GetOrDecode(key, data)
	if err != nil {
		return nil
	}
	return img
}

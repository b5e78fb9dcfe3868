package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"
)

// buildGLB assembles a GLB container from a JSON document and an optional
// binary payload, with spec-conformant 4-byte chunk padding.
func buildGLB(t *testing.T, doc map[string]any, bin []byte) []byte {
	t.Helper()

	jsonData, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture JSON: %v", err)
	}
	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}

	var binChunk []byte
	if bin != nil {
		binChunk = append(binChunk, bin...)
		for len(binChunk)%4 != 0 {
			binChunk = append(binChunk, 0)
		}
	}

	total := 12 + 8 + len(jsonData)
	if binChunk != nil {
		total += 8 + len(binChunk)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(gltfGLBMagic))
	binary.Write(&buf, binary.LittleEndian, uint32(gltfGLBVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(total))

	binary.Write(&buf, binary.LittleEndian, uint32(len(jsonData)))
	binary.Write(&buf, binary.LittleEndian, uint32(gltfGLBChunkJSON))
	buf.Write(jsonData)

	if binChunk != nil {
		binary.Write(&buf, binary.LittleEndian, uint32(len(binChunk)))
		binary.Write(&buf, binary.LittleEndian, uint32(gltfGLBChunkBIN))
		buf.Write(binChunk)
	}

	return buf.Bytes()
}

// binWriter accumulates a GLB binary chunk and the bufferView/accessor JSON
// that describes it. Each put* call appends one tightly packed accessor and
// returns its index.
type binWriter struct {
	data        []byte
	bufferViews []map[string]any
	accessors   []map[string]any
}

func (w *binWriter) align(n int) {
	for len(w.data)%n != 0 {
		w.data = append(w.data, 0)
	}
}

func (w *binWriter) putAccessor(raw []byte, componentType int, accType string, count int, normalized bool) int {
	w.align(4)
	offset := len(w.data)
	w.data = append(w.data, raw...)

	w.bufferViews = append(w.bufferViews, map[string]any{
		"buffer":     0,
		"byteOffset": offset,
		"byteLength": len(raw),
	})
	acc := map[string]any{
		"bufferView":    len(w.bufferViews) - 1,
		"componentType": componentType,
		"count":         count,
		"type":          accType,
	}
	if normalized {
		acc["normalized"] = true
	}
	w.accessors = append(w.accessors, acc)
	return len(w.accessors) - 1
}

func (w *binWriter) putFloats(accType string, vals ...float32) int {
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	count := len(vals) / gltfAccessorTypeComponentCount(accType)
	return w.putAccessor(raw, gltfComponentTypeFloat, accType, count, false)
}

func (w *binWriter) putUint16s(accType string, vals ...uint16) int {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	count := len(vals) / gltfAccessorTypeComponentCount(accType)
	return w.putAccessor(raw, gltfComponentTypeUnsignedShort, accType, count, false)
}

func (w *binWriter) putUint8s(accType string, vals ...uint8) int {
	count := len(vals) / gltfAccessorTypeComponentCount(accType)
	return w.putAccessor(append([]byte(nil), vals...), gltfComponentTypeUnsignedByte, accType, count, false)
}

// finish wires the accumulated views and accessors into the document JSON
// and declares buffer 0 as the GLB binary chunk.
func (w *binWriter) finish(doc map[string]any) {
	doc["buffers"] = []map[string]any{{"byteLength": len(w.data)}}
	doc["bufferViews"] = w.bufferViews
	doc["accessors"] = w.accessors
}

// baseDoc returns a minimal valid glTF 2.0 document skeleton.
func baseDoc() map[string]any {
	return map[string]any{
		"asset": map[string]any{"version": "2.0"},
	}
}

// riggedFixture builds a GLB with a three-bone chain (Hips -> Spine -> Head),
// a skinned triangle, and one two-keyframe rotation animation on Spine.
// Layout: nodes 0..2 are the joints, node 3 carries the mesh and skin.
func riggedFixture(t *testing.T) []byte {
	t.Helper()

	w := &binWriter{}
	positions := w.putFloats(gltfAccessorTypeVec3,
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	)
	joints := w.putUint8s(gltfAccessorTypeVec4,
		0, 0, 0, 0,
		1, 0, 0, 0,
		2, 1, 0, 0,
	)
	weights := w.putFloats(gltfAccessorTypeVec4,
		1, 0, 0, 0,
		1, 0, 0, 0,
		0.75, 0.25, 0, 0,
	)
	indices := w.putUint16s(gltfAccessorTypeScalar, 0, 1, 2)

	animTimes := w.putFloats(gltfAccessorTypeScalar, 0, 1)
	// Identity then 90 degrees around Y, stored as (x, y, z, w).
	s := float32(math.Sqrt(0.5))
	animRots := w.putFloats(gltfAccessorTypeVec4,
		0, 0, 0, 1,
		0, s, 0, s,
	)

	doc := baseDoc()
	doc["scene"] = 0
	doc["scenes"] = []map[string]any{{"nodes": []int{0, 3}}}
	doc["nodes"] = []map[string]any{
		{"name": "Hips", "children": []int{1}, "translation": []float32{0, 1, 0}},
		{"name": "Spine", "children": []int{2}, "translation": []float32{0, 0.5, 0}},
		{"name": "Head", "translation": []float32{0, 0.5, 0}},
		{"name": "Body", "mesh": 0, "skin": 0},
	}
	doc["skins"] = []map[string]any{{"joints": []int{0, 1, 2}}}
	doc["meshes"] = []map[string]any{{
		"name": "body",
		"primitives": []map[string]any{{
			"attributes": map[string]int{
				"POSITION":  positions,
				"JOINTS_0":  joints,
				"WEIGHTS_0": weights,
			},
			"indices": indices,
		}},
	}}
	doc["animations"] = []map[string]any{{
		"name": "turn",
		"samplers": []map[string]any{{
			"input":         animTimes,
			"output":        animRots,
			"interpolation": "LINEAR",
		}},
		"channels": []map[string]any{{
			"sampler": 0,
			"target":  map[string]any{"node": 1, "path": "rotation"},
		}},
	}}
	w.finish(doc)

	return buildGLB(t, doc, w.data)
}

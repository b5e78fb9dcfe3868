package loader

import (
	"errors"
	"testing"
)

// clipFileFixture builds a standalone clip document animating the Spine bone
// of the rigged fixture's skeleton.
func clipFileFixture(t *testing.T, animName string) []byte {
	t.Helper()

	w := &binWriter{}
	input := w.putFloats(gltfAccessorTypeScalar, 0, 0.5, 1)
	output := w.putFloats(gltfAccessorTypeVec3,
		0, 0, 0,
		0, 0.25, 0,
		0, 0.5, 0,
	)

	doc := baseDoc()
	doc["scenes"] = []map[string]any{{"nodes": []int{0}}}
	// The clip file carries its own skinny copy of the rig; only the node
	// names matter for resolution against the model's skeleton.
	doc["nodes"] = []map[string]any{
		{"name": "Spine"},
	}
	doc["animations"] = []map[string]any{{
		"name": animName,
		"samplers": []map[string]any{{
			"input":  input,
			"output": output,
		}},
		"channels": []map[string]any{{
			"sampler": 0,
			"target":  map[string]any{"node": 0, "path": "translation"},
		}},
	}}
	w.finish(doc)

	return buildGLB(t, doc, w.data)
}

func TestLoadAssetBytes(t *testing.T) {
	loader := NewLoader()
	asset, report, err := loader.LoadAssetBytes("hero", riggedFixture(t), map[string][]byte{
		"walk": clipFileFixture(t, "walk_export"),
		"bash": clipFileFixture(t, "strike_export"),
	})
	if err != nil {
		t.Fatalf("LoadAssetBytes failed: %v", err)
	}

	if asset.Name != "hero" {
		t.Errorf("asset name = %q", asset.Name)
	}
	if len(asset.Skeleton.Bones) != 4 {
		t.Errorf("bone count = %d, want 4", len(asset.Skeleton.Bones))
	}
	if len(asset.MeshParts) != 1 {
		t.Errorf("mesh part count = %d, want 1", len(asset.MeshParts))
	}
	// Embedded "turn" plus the two clip files.
	if len(asset.Clips) != 3 {
		t.Fatalf("clip count = %d, want 3", len(asset.Clips))
	}
	if report.SkippedChannels != 0 {
		t.Errorf("SkippedChannels = %d, want 0", report.SkippedChannels)
	}

	// File clips are registered under the caller's keys, not the exporter's
	// animation names.
	for _, name := range []string{"turn", "walk", "bash"} {
		id, ok := asset.ClipByName(name)
		if !ok {
			t.Errorf("clip %q not interned", name)
			continue
		}
		if asset.Clip(id) == nil {
			t.Errorf("clip %q: nil clip for interned id", name)
		}
	}
	if _, ok := asset.ClipByName("walk_export"); ok {
		t.Error("exporter animation name leaked into the clip registry")
	}

	// Loop defaults follow the caller's clip name.
	walkID, _ := asset.ClipByName("walk")
	bashID, _ := asset.ClipByName("bash")
	if !asset.Clip(walkID).Loop {
		t.Error("walk should loop")
	}
	if asset.Clip(bashID).Loop {
		t.Error("bash should not loop")
	}
}

func TestLoadAssetBytesClipOrderDeterministic(t *testing.T) {
	clips := map[string][]byte{
		"c": clipFileFixture(t, "c"),
		"a": clipFileFixture(t, "a"),
		"b": clipFileFixture(t, "b"),
	}

	loader := NewLoader(WithWorkers(3))
	var firstOrder []string
	for run := 0; run < 3; run++ {
		asset, _, err := loader.LoadAssetBytes("hero", riggedFixture(t), clips)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		var order []string
		for _, clip := range asset.Clips {
			order = append(order, clip.Name)
		}
		if run == 0 {
			firstOrder = order
			continue
		}
		for i := range firstOrder {
			if order[i] != firstOrder[i] {
				t.Fatalf("run %d: clip order %v differs from %v", run, order, firstOrder)
			}
		}
	}

	// Sorted clip-file names after the embedded clip.
	want := []string{"turn", "a", "b", "c"}
	for i, name := range want {
		if firstOrder[i] != name {
			t.Fatalf("clip order = %v, want %v", firstOrder, want)
		}
	}
}

func TestLoadAssetBytesSkeletonDeterministic(t *testing.T) {
	loader := NewLoader()

	first, _, err := loader.LoadAssetBytes("hero", riggedFixture(t), nil)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, _, err := loader.LoadAssetBytes("hero", riggedFixture(t), nil)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	a, b := first.Skeleton, second.Skeleton
	if len(a.Bones) != len(b.Bones) {
		t.Fatalf("bone counts differ: %d vs %d", len(a.Bones), len(b.Bones))
	}
	for i := range a.Bones {
		if a.Bones[i].Name != b.Bones[i].Name {
			t.Errorf("bone %d: name %q vs %q", i, a.Bones[i].Name, b.Bones[i].Name)
		}
		if a.Bones[i].ParentIndex != b.Bones[i].ParentIndex {
			t.Errorf("bone %d (%s): parent %d vs %d",
				i, a.Bones[i].Name, a.Bones[i].ParentIndex, b.Bones[i].ParentIndex)
		}
		if a.Bones[i].InverseBindMatrix != b.Bones[i].InverseBindMatrix {
			t.Errorf("bone %d (%s): inverse bind matrices differ", i, a.Bones[i].Name)
		}
	}
}

func TestLoadAssetBytesClipWithoutAnimations(t *testing.T) {
	doc := baseDoc()
	doc["nodes"] = []map[string]any{{"name": "Spine"}}
	empty := buildGLB(t, doc, nil)

	loader := NewLoader()
	_, _, err := loader.LoadAssetBytes("hero", riggedFixture(t), map[string][]byte{
		"walk": empty,
	})
	if !errors.Is(err, errNoAnimations) {
		t.Fatalf("expected errNoAnimations, got %v", err)
	}
}

func TestLoadAssetBytesChannelResolutionAgainstModelSkeleton(t *testing.T) {
	// A clip targeting a bone the model does not have is skipped, not fatal.
	w := &binWriter{}
	input := w.putFloats(gltfAccessorTypeScalar, 0, 1)
	output := w.putFloats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0)

	doc := baseDoc()
	doc["scenes"] = []map[string]any{{"nodes": []int{0}}}
	doc["nodes"] = []map[string]any{{"name": "Tail"}}
	doc["animations"] = []map[string]any{{
		"name": "wag",
		"samplers": []map[string]any{{
			"input":  input,
			"output": output,
		}},
		"channels": []map[string]any{{
			"sampler": 0,
			"target":  map[string]any{"node": 0, "path": "translation"},
		}},
	}}
	w.finish(doc)

	loader := NewLoader()
	asset, report, err := loader.LoadAssetBytes("hero", riggedFixture(t), map[string][]byte{
		"wag": buildGLB(t, doc, w.data),
	})
	if err != nil {
		t.Fatalf("LoadAssetBytes failed: %v", err)
	}
	if report.SkippedChannels != 1 {
		t.Errorf("SkippedChannels = %d, want 1", report.SkippedChannels)
	}

	id, ok := asset.ClipByName("wag")
	if !ok {
		t.Fatal("clip should still be registered with its channels skipped")
	}
	if asset.Clip(id).Tracks.Len() != 0 {
		t.Errorf("expected empty track set, got %d tracks", asset.Clip(id).Tracks.Len())
	}
}

func TestLoadAssetBytesInverseBindSourceOption(t *testing.T) {
	loader := NewLoader(WithInverseBindSource(InverseBindAccessor))
	asset, _, err := loader.LoadAssetBytes("hero", riggedFixture(t), nil)
	if err != nil {
		t.Fatalf("LoadAssetBytes failed: %v", err)
	}
	// The fixture's skin has no inverseBindMatrices accessor, so the
	// hierarchy fallback still yields a usable skeleton.
	if len(asset.Skeleton.Bones) != 4 {
		t.Errorf("bone count = %d, want 4", len(asset.Skeleton.Bones))
	}
}

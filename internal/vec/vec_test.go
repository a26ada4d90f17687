package vec

import "testing"

func TestVec2ChunkCoords(t *testing.T) {
	cases := []struct {
		global Vec2
		chunk  Vec2
		local  Vec2
	}{
		{Vec2{X: 0, Z: 0}, Vec2{X: 0, Z: 0}, Vec2{X: 0, Z: 0}},
		{Vec2{X: 15, Z: 15}, Vec2{X: 0, Z: 0}, Vec2{X: 15, Z: 15}},
		{Vec2{X: 16, Z: 31}, Vec2{X: 1, Z: 1}, Vec2{X: 0, Z: 15}},
		{Vec2{X: -1, Z: -16}, Vec2{X: -1, Z: -1}, Vec2{X: 15, Z: 0}},
	}

	for _, c := range cases {
		got := c.global.ToChunkCoords()
		if !got.Equals(c.chunk) {
			t.Errorf("ToChunkCoords(%v): ожидалось %v, получено %v", c.global, c.chunk, got)
		}
		gotLocal := c.global.LocalInChunk()
		if !gotLocal.Equals(c.local) {
			t.Errorf("LocalInChunk(%v): ожидалось %v, получено %v", c.global, c.local, gotLocal)
		}
	}
}

func TestVec3Neighbors6(t *testing.T) {
	v := Vec3{X: 3, Y: 7, Z: -2}
	seen := make(map[Vec3]struct{})
	for _, n := range v.Neighbors6() {
		if v.ManhattanTo(n) != 1 {
			t.Errorf("Сосед %v не является осевым соседом %v", n, v)
		}
		seen[n] = struct{}{}
	}
	if len(seen) != 6 {
		t.Errorf("Ожидалось 6 уникальных соседей, получено %d", len(seen))
	}
}

func TestVec3FloatRound(t *testing.T) {
	f := Vec3Float{X: 1.4, Y: -2.6, Z: 0.5}
	got := f.Round()
	want := Vec3{X: 1, Y: -3, Z: 1}
	if !got.Equals(want) {
		t.Errorf("Round(%v): ожидалось %v, получено %v", f, want, got)
	}
}

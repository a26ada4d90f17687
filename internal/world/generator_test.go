package world

import (
	"testing"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world/block"
)

func TestGenerateChunkDeterministic(t *testing.T) {
	g := NewGenerator(42)
	coords := vec.Vec2{X: 3, Z: -2}

	a := g.GenerateChunk(coords)
	b := g.GenerateChunk(coords)

	if a.BlockCount() == 0 {
		t.Fatal("Сгенерированный чанк не должен быть пустым")
	}
	if a.BlockCount() != b.BlockCount() {
		t.Fatalf("Генерация недетерминирована: %d против %d блоков", a.BlockCount(), b.BlockCount())
	}

	a.ForEachBlock(func(local vec.Vec3, id block.BlockID) {
		if got := b.GetBlock(local); got != id {
			t.Errorf("Блок %v разошелся между генерациями: %v против %v", local, id, got)
		}
	})
}

func TestGenerateChunkHasBedrockFloor(t *testing.T) {
	g := NewGenerator(7)
	c := g.GenerateChunk(vec.Vec2{X: 0, Z: 0})

	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			if got := c.GetBlock(vec.Vec3{X: x, Y: BedrockY, Z: z}); got != block.BedrockBlockID {
				t.Fatalf("Дно колонки (%d,%d) должно быть бедроком, получено %v", x, z, got)
			}
		}
	}
}

func TestGenerateChunkCleanChangeState(t *testing.T) {
	g := NewGenerator(1)
	c := g.GenerateChunk(vec.Vec2{X: 1, Z: 1})
	if c.HasChanges() {
		t.Fatal("Сгенерированное состояние не должно числиться изменением")
	}
}

func TestSurfaceY(t *testing.T) {
	m := NewManager(NewGenerator(42))
	column := vec.Vec2{X: 8, Z: 8}
	m.LoadChunk(column.ToChunkCoords())

	y := SurfaceY(m, column)
	if y <= BedrockY {
		t.Fatalf("Поверхность сгенерированной колонки должна быть выше бедрока, получено %d", y)
	}
	if !m.IsSolid(vec.Vec3{X: column.X, Y: y, Z: column.Z}) {
		t.Error("SurfaceY обязан указывать на твердый воксель")
	}
	if m.IsSolid(vec.Vec3{X: column.X, Y: y + 1, Z: column.Z}) {
		t.Error("Над поверхностью должен быть нетвердый воксель")
	}
}

package world

import (
	"testing"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRemoveVoxelRoundTrip(t *testing.T) {
	m := NewManager(nil)
	m.LoadChunk(vec.Vec2{X: 0, Z: 0})

	pos := vec.Vec3{X: 5, Y: 30, Z: 5}
	m.SetBlock(pos, block.StoneBlockID)
	require.True(t, m.IsSolid(pos))

	// Удаление немедленно видно всем последующим чтениям:
	// вторичных индексов нет, мир — единственный источник истины
	assert.True(t, m.RemoveVoxel(pos))
	assert.False(t, m.IsSolid(pos))
	id, loaded := m.BlockAt(pos)
	assert.True(t, loaded)
	assert.Equal(t, block.AirBlockID, id)

	// Повторное удаление идемпотентно
	assert.False(t, m.RemoveVoxel(pos))
}

func TestManagerUnloadedChunkSemantics(t *testing.T) {
	m := NewManager(nil)

	pos := vec.Vec3{X: 100, Y: 10, Z: 100}
	assert.False(t, m.ChunkLoaded(m.ChunkCoordOf(pos)))

	// Незагруженный чанк: не твердо, но и не подтверждено
	_, loaded := m.BlockAt(pos)
	assert.False(t, loaded)
	assert.False(t, m.IsSolid(pos))

	// Удаление в незагруженном чанке безвредно
	assert.False(t, m.RemoveVoxel(pos))
}

func TestManagerPinningBlocksUnload(t *testing.T) {
	m := NewManager(nil)
	coords := vec.Vec2{X: 1, Z: 2}
	m.LoadChunk(coords)

	pins := map[vec.Vec2]struct{}{coords: {}}
	m.PinChunks(pins)
	m.PinChunks(pins) // Второй держатель (например, параллельный прогон)

	require.Error(t, m.UnloadChunk(coords), "запинованный чанк не должен выгружаться")

	m.UnpinChunks(pins)
	require.Error(t, m.UnloadChunk(coords), "чанк держит второй пин")
	assert.Equal(t, 1, m.PinCount(coords))

	m.UnpinChunks(pins)
	assert.Equal(t, 0, m.PinCount(coords))
	assert.NoError(t, m.UnloadChunk(coords))
	assert.False(t, m.ChunkLoaded(coords))
}

func TestManagerRegenerateChunkHook(t *testing.T) {
	m := NewManager(nil)
	coords := vec.Vec2{X: 0, Z: 0}
	m.LoadChunk(coords)
	m.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.StoneBlockID)

	var saved []*Chunk
	m.SetRegenerateHook(func(c *Chunk) error {
		saved = append(saved, c)
		return nil
	})

	c, _ := m.GetChunk(coords)
	require.True(t, c.HasChanges())

	m.RegenerateChunk(coords)
	require.Len(t, saved, 1)
	assert.Equal(t, coords, saved[0].Coords)
	assert.False(t, c.HasChanges(), "регенерация сбрасывает накопленные изменения")

	// Регенерация незагруженного чанка — no-op
	m.RegenerateChunk(vec.Vec2{X: 9, Z: 9})
	assert.Len(t, saved, 1)
}

func TestManagerApplyWireBlocks(t *testing.T) {
	m := NewManager(nil)

	report := []WireBlock{
		{X: 1, Y: 10, Z: 1, Name: "minecraft:stone"},
		{X: 1, Y: 11, Z: 1, Name: "minecraft:diamond_ore"},
		{X: 1, Y: 12, Z: 1, Name: ""},               // Пустой скан — воздух
		{X: 1, Y: 13, Z: 1, Name: "modded:unknown"}, // Неизвестный блок — твердый
	}

	applied := m.ApplyWireBlocks(report)
	assert.Equal(t, 4, applied)

	assert.True(t, m.IsSolid(vec.Vec3{X: 1, Y: 10, Z: 1}))
	id, _ := m.BlockAt(vec.Vec3{X: 1, Y: 11, Z: 1})
	assert.Equal(t, block.DiamondOreBlockID, id)
	assert.False(t, m.IsSolid(vec.Vec3{X: 1, Y: 12, Z: 1}))
	assert.True(t, m.IsSolid(vec.Vec3{X: 1, Y: 13, Z: 1}), "неизвестный блок консервативно твердый")

	// Повторное применение того же отчета ничего не меняет
	assert.Equal(t, 0, m.ApplyWireBlocks(report))
}

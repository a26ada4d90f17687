package world

import (
	"math/rand"

	"github.com/annel0/turtle-miner/internal/util"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world/block"
)

// Константы высот для генерации
const (
	BedrockY      = 0  // Уровень бедрока
	SeaLevel      = 24 // Уровень воды
	BaseSurfaceY  = 28 // Базовая высота поверхности
	SurfaceNoiseH = 24 // Амплитуда шума высоты
)

// Generator генерирует ландшафт симулируемого мира.
// Используется в dev/sim-режиме; в боевом режиме мир заполняется
// отчетами сканирования туртлов.
type Generator struct {
	Seed       int64   // Сид для генерации шума
	NoiseScale float64 // Масштаб шума высоты
	OreChance  float64 // Вероятность рудной жилы на колонку камня
}

// NewGenerator создаёт новый генератор мира
func NewGenerator(seed int64) *Generator {
	util.InitPerlinNoise(seed)

	return &Generator{
		Seed:       seed,
		NoiseScale: 0.03,
		OreChance:  0.08,
	}
}

// GenerateChunk генерирует чанк по его координатам
func (g *Generator) GenerateChunk(coords vec.Vec2) *Chunk {
	chunk := NewChunk(coords)

	// Уникальный детерминированный сид чанка для расстановки руд
	chunkSeed := g.Seed + int64(coords.X)*31 + int64(coords.Z)*17
	rng := rand.New(rand.NewSource(chunkSeed))

	globalStartX := coords.X << 4
	globalStartZ := coords.Z << 4

	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			globalX := globalStartX + x
			globalZ := globalStartZ + z

			noise := util.PerlinNoise2D(
				float64(globalX)*g.NoiseScale,
				float64(globalZ)*g.NoiseScale,
				g.Seed,
			)
			surfaceY := BaseSurfaceY + int(noise*SurfaceNoiseH)

			g.fillColumn(chunk, x, z, surfaceY, rng)
		}
	}

	chunk.ClearChanges() // Сгенерированное состояние не считается изменением
	return chunk
}

// fillColumn заполняет одну вертикальную колонку чанка
func (g *Generator) fillColumn(chunk *Chunk, x, z, surfaceY int, rng *rand.Rand) {
	chunk.SetBlock(vec.Vec3{X: x, Y: BedrockY, Z: z}, block.BedrockBlockID)

	for y := BedrockY + 1; y <= surfaceY; y++ {
		switch {
		case y >= surfaceY-2 && surfaceY > SeaLevel:
			// Верхние слои над водой: земля и трава
			if y == surfaceY {
				chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.GrassBlockID)
			} else {
				chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.DirtBlockID)
			}
		case y >= surfaceY-2:
			chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.SandBlockID)
		default:
			chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.StoneBlockID)
		}
	}

	// Затопляем низины до уровня моря
	for y := surfaceY + 1; y <= SeaLevel; y++ {
		chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.WaterBlockID)
	}

	// Рудная жила: короткий вертикальный прожилок в каменной части колонки
	if surfaceY-4 > BedrockY+1 && rng.Float64() < g.OreChance {
		oreY := BedrockY + 1 + rng.Intn(surfaceY-4-BedrockY)
		oreID := g.pickOre(rng, oreY)
		veinLen := 1 + rng.Intn(3)
		for i := 0; i < veinLen && oreY+i < surfaceY-3; i++ {
			chunk.SetBlock(vec.Vec3{X: x, Y: oreY + i, Z: z}, oreID)
		}
	}
}

// pickOre выбирает руду с учетом глубины: алмазы только у бедрока
func (g *Generator) pickOre(rng *rand.Rand, y int) block.BlockID {
	roll := rng.Float64()
	switch {
	case y <= BedrockY+6 && roll < 0.15:
		return block.DiamondOreBlockID
	case roll < 0.35:
		return block.IronOreBlockID
	case roll < 0.45:
		return block.GoldOreBlockID
	case roll < 0.55:
		return block.RedstoneBlockID
	default:
		return block.CoalOreBlockID
	}
}

// SurfaceY возвращает высоту первого непустого вокселя сверху в колонке
// (или BedrockY, если колонка пуста). Используется для спауна туртла в sim-режиме.
func SurfaceY(m *Manager, column vec.Vec2) int {
	top := BaseSurfaceY + SurfaceNoiseH + 1
	for y := top; y > BedrockY; y-- {
		if m.IsSolid(vec.Vec3{X: column.X, Y: y, Z: column.Z}) {
			return y
		}
	}
	return BedrockY
}

package world

import (
	"sync"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world/block"
)

// ChunkSize задает размер чанка по горизонтали (блоков по X и Z)
const ChunkSize = 16

// Chunk представляет вертикальный столб мира размером 16x16 блоков.
// Хранит только непустые воксели; отсутствие записи означает воздух.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире (x, z)

	blocks map[vec.Vec3]block.BlockID // Ключ — локальные координаты (X,Z в [0,16), Y глобальный)

	Changes       map[vec.Vec3]struct{} // Измененные воксели с момента последнего сохранения
	ChangeCounter int                   // Счетчик изменений
	Mu            sync.RWMutex          // Мьютекс для безопасного доступа
}

// NewChunk создаёт новый пустой чанк с указанными координатами
func NewChunk(coords vec.Vec2) *Chunk {
	return &Chunk{
		Coords:  coords,
		blocks:  make(map[vec.Vec3]block.BlockID),
		Changes: make(map[vec.Vec3]struct{}),
	}
}

// toLocal преобразует глобальные координаты вокселя в локальные для чанка
func toLocal(pos vec.Vec3) vec.Vec3 {
	return vec.Vec3{X: pos.X & 0xF, Y: pos.Y, Z: pos.Z & 0xF}
}

// GetBlock возвращает ID блока по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	id, exists := c.blocks[local]
	if !exists {
		return block.AirBlockID
	}
	return id
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, blockID block.BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if blockID == block.AirBlockID {
		delete(c.blocks, local)
	} else {
		c.blocks[local] = blockID
	}
	c.Changes[local] = struct{}{}
	c.ChangeCounter++
}

// RemoveBlock убирает воксель по локальным координатам.
// Идемпотентна: удаление уже пустого вокселя не является ошибкой
// и не регистрируется как изменение. Возвращает true, если воксель был твердым.
func (c *Chunk) RemoveBlock(local vec.Vec3) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if _, exists := c.blocks[local]; !exists {
		return false
	}
	delete(c.blocks, local)
	c.Changes[local] = struct{}{}
	c.ChangeCounter++
	return true
}

// BlockCount возвращает число непустых вокселей в чанке
func (c *Chunk) BlockCount() int {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return len(c.blocks)
}

// HasChanges возвращает true, если в чанке есть несохраненные изменения
func (c *Chunk) HasChanges() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return c.ChangeCounter > 0
}

// ClearChanges очищает список изменений
func (c *Chunk) ClearChanges() {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	c.Changes = make(map[vec.Vec3]struct{})
	c.ChangeCounter = 0
}

// ForEachBlock вызывает fn для каждого непустого вокселя (локальные координаты).
// Используется при сериализации чанка.
func (c *Chunk) ForEachBlock(fn func(local vec.Vec3, id block.BlockID)) {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	for local, id := range c.blocks {
		fn(local, id)
	}
}

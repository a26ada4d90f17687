package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/turtle-miner/internal/eventbus"
	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world/block"
	"github.com/google/uuid"
)

// Manager — единственный авторитетный источник вокселей.
// Все запросы проходимости и все мутации идут через него; отдельных
// вторичных индексов блоков не существует, поэтому после RemoveVoxel
// любое последующее чтение немедленно видит зафиксированное состояние.
type Manager struct {
	mu        sync.RWMutex
	chunks    map[vec.Vec2]*Chunk // Загруженные чанки
	pins      map[vec.Vec2]int    // Счетчики пинов по чанкам
	generator *Generator          // Генератор ландшафта (может быть nil)
	bus       eventbus.EventBus   // Шина событий (может быть nil)
	regenHook func(*Chunk) error  // Вызывается при регенерации чанка (персистентность)
	loadHook  func(vec.Vec2) (*Chunk, bool) // Восстановление чанка из хранилища, приоритетнее генератора
}

// WireBlock — блок из отчета сканирования туртла
type WireBlock struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
	Name string `json:"name"`
}

// NewManager создаёт менеджер мира. Генератор может быть nil —
// тогда чанки создаются пустыми (режим наблюдаемого мира).
func NewManager(generator *Generator) *Manager {
	return &Manager{
		chunks:    make(map[vec.Vec2]*Chunk),
		pins:      make(map[vec.Vec2]int),
		generator: generator,
	}
}

// SetEventBus подключает шину событий для уведомлений о регенерации
func (m *Manager) SetEventBus(bus eventbus.EventBus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
}

// SetRegenerateHook подключает обработчик регенерации (например, сохранение чанка)
func (m *Manager) SetRegenerateHook(hook func(*Chunk) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regenHook = hook
}

// SetLoadHook подключает восстановление чанков из хранилища.
// Сохраненное состояние имеет приоритет над генератором: выкопанные
// воксели не должны возрождаться при повторной загрузке чанка.
func (m *Manager) SetLoadHook(hook func(vec.Vec2) (*Chunk, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadHook = hook
}

// ChunkCoordOf возвращает координаты чанка, владеющего вокселем
func (m *Manager) ChunkCoordOf(pos vec.Vec3) vec.Vec2 {
	return pos.XZ().ToChunkCoords()
}

// ChunkLoaded сообщает, загружен ли чанк с указанными координатами
func (m *Manager) ChunkLoaded(coords vec.Vec2) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.chunks[coords]
	return exists
}

// GetChunk возвращает загруженный чанк, если он есть
func (m *Manager) GetChunk(coords vec.Vec2) (*Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.chunks[coords]
	return c, exists
}

// LoadChunk загружает (или генерирует) чанк и регистрирует его.
// Повторная загрузка возвращает уже существующий чанк.
func (m *Manager) LoadChunk(coords vec.Vec2) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, exists := m.chunks[coords]; exists {
		return c
	}

	var c *Chunk
	if m.loadHook != nil {
		if restored, ok := m.loadHook(coords); ok {
			m.chunks[coords] = restored
			return restored
		}
	}
	if m.generator != nil {
		c = m.generator.GenerateChunk(coords)
	} else {
		c = NewChunk(coords)
	}
	m.chunks[coords] = c
	return c
}

// UnloadChunk выгружает чанк. Запинованный чанк выгрузить нельзя —
// это общий ресурс между стримингом и горнодобывающим оркестратором.
func (m *Manager) UnloadChunk(coords vec.Vec2) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pins[coords] > 0 {
		return fmt.Errorf("чанк (%d,%d) запинован (%d), выгрузка запрещена", coords.X, coords.Z, m.pins[coords])
	}
	delete(m.chunks, coords)
	return nil
}

// BlockAt возвращает ID блока и признак загруженности владеющего чанка
func (m *Manager) BlockAt(pos vec.Vec3) (block.BlockID, bool) {
	m.mu.RLock()
	c, exists := m.chunks[m.ChunkCoordOf(pos)]
	m.mu.RUnlock()

	if !exists {
		return block.AirBlockID, false
	}
	return c.GetBlock(toLocal(pos)), true
}

// IsSolid отвечает, занят ли воксель твердым блоком.
// Для незагруженного чанка возвращает false: вызывающий обязан
// отдельно проверить загруженность через ChunkLoaded.
func (m *Manager) IsSolid(pos vec.Vec3) bool {
	id, loaded := m.BlockAt(pos)
	if !loaded {
		return false
	}
	return block.IsSolidID(id)
}

// SetBlock устанавливает блок, при необходимости загружая чанк
func (m *Manager) SetBlock(pos vec.Vec3, id block.BlockID) {
	coords := m.ChunkCoordOf(pos)
	c := m.LoadChunk(coords)
	c.SetBlock(toLocal(pos), id)
}

// RemoveVoxel убирает воксель из мира. Операция идемпотентна:
// удаление уже пустого вокселя или вокселя в незагруженном чанке безвредно.
// Возвращает true, если воксель действительно был твердым.
func (m *Manager) RemoveVoxel(pos vec.Vec3) bool {
	m.mu.RLock()
	c, exists := m.chunks[m.ChunkCoordOf(pos)]
	m.mu.RUnlock()

	if !exists {
		return false
	}
	return c.RemoveBlock(toLocal(pos))
}

// PinChunks запиновывает набор чанков от выгрузки.
// Пины считаются: каждый PinChunks должен быть парным UnpinChunks.
func (m *Manager) PinChunks(coords map[vec.Vec2]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c := range coords {
		m.pins[c]++
	}
}

// UnpinChunks снимает пины с набора чанков
func (m *Manager) UnpinChunks(coords map[vec.Vec2]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c := range coords {
		if m.pins[c] <= 1 {
			delete(m.pins, c)
		} else {
			m.pins[c]--
		}
	}
}

// ChunkCount возвращает число загруженных чанков
func (m *Manager) ChunkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.chunks)
}

// PinCount возвращает текущий счетчик пинов чанка (для тестов и диагностики)
func (m *Manager) PinCount(coords vec.Vec2) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pins[coords]
}

// RegenerateChunk выполняет регенерацию чанка: сбрасывает накопленные
// изменения в хук персистентности и публикует событие для подписчиков
// (мешер, веб-клиенты). Вызывается батчево на границах проходов, не на
// каждый воксель.
func (m *Manager) RegenerateChunk(coords vec.Vec2) {
	m.mu.RLock()
	c, exists := m.chunks[coords]
	hook := m.regenHook
	bus := m.bus
	m.mu.RUnlock()

	if !exists {
		return
	}

	if hook != nil {
		if err := hook(c); err != nil {
			logging.Error("Ошибка сохранения чанка (%d,%d) при регенерации: %v", coords.X, coords.Z, err)
		}
	}
	c.ClearChanges()

	if bus != nil {
		payload, _ := json.Marshal(map[string]int{"x": coords.X, "z": coords.Z})
		ev := &eventbus.Envelope{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			Source:    "world",
			EventType: eventbus.EventChunkRegenerated,
			Version:   1,
			Payload:   payload,
		}
		if err := bus.Publish(context.Background(), ev); err != nil {
			logging.Warn("Не удалось опубликовать событие регенерации чанка (%d,%d): %v", coords.X, coords.Z, err)
		}
	}
}

// ApplyWireBlocks применяет отчет сканирования туртла к миру.
// Возвращает число новых (ранее неизвестных) твердых вокселей.
func (m *Manager) ApplyWireBlocks(blocks []WireBlock) int {
	applied := 0
	for _, wb := range blocks {
		pos := vec.Vec3{X: wb.X, Y: wb.Y, Z: wb.Z}
		id := block.FromWireName(wb.Name)
		if current, loaded := m.BlockAt(pos); loaded && current == id {
			continue
		}
		m.SetBlock(pos, id)
		applied++
	}
	return applied
}

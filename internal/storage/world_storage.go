package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/gzip"
)

// WorldStorage — персистентное хранилище вокселей поверх BadgerDB.
// Снапшоты чанков сериализуются в JSON и сжимаются gzip: разреженные
// карты вокселей жмутся на порядок.
//
// Подключается к миру двумя хуками: SaveChunk на регенерации чанка,
// RestoreChunk на загрузке. Сохраненное состояние приоритетнее
// генератора — выкопанное не возрождается.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mu      sync.RWMutex
	isReady bool
}

// ChunkSnapshot — полное разреженное состояние чанка.
// Ключ блока — локальные координаты "x:y:z"; отсутствие записи — воздух.
type ChunkSnapshot struct {
	X      int                      `json:"x"`
	Z      int                      `json:"z"`
	Blocks map[string]block.BlockID `json:"blocks"`
}

// NewWorldStorage создает хранилище мира в указанной директории
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.isReady {
		return nil
	}
	ws.isReady = false
	return ws.db.Close()
}

// SaveChunk сохраняет снапшот чанка. Чанк без накопленных изменений
// пропускается: регенерация батчевая и может задевать чистые чанки.
func (ws *WorldStorage) SaveChunk(chunk *world.Chunk) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if !chunk.HasChanges() {
		return nil
	}

	snap := ChunkSnapshot{
		X:      chunk.Coords.X,
		Z:      chunk.Coords.Z,
		Blocks: make(map[string]block.BlockID),
	}
	chunk.ForEachBlock(func(local vec.Vec3, id block.BlockID) {
		snap.Blocks[packLocal(local)] = id
	})

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}

	compressed, err := compress(raw)
	if err != nil {
		return fmt.Errorf("сжатие снапшота: %w", err)
	}

	key := chunkKey(chunk.Coords)
	err = ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, compressed)
	})
	if err != nil {
		return fmt.Errorf("запись в BadgerDB: %w", err)
	}
	return nil
}

// RestoreChunk восстанавливает чанк из снапшота.
// ok=false, если чанк никогда не сохранялся.
func (ws *WorldStorage) RestoreChunk(coords vec.Vec2) (*world.Chunk, bool, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if !ws.isReady {
		return nil, false, fmt.Errorf("хранилище не готово")
	}

	var compressed []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coords))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("чтение из BadgerDB: %w", err)
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, false, fmt.Errorf("распаковка снапшота: %w", err)
	}

	var snap ChunkSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снапшота: %w", err)
	}

	chunk := world.NewChunk(coords)
	for key, id := range snap.Blocks {
		local, err := unpackLocal(key)
		if err != nil {
			return nil, false, fmt.Errorf("битый ключ блока %q: %w", key, err)
		}
		chunk.SetBlock(local, id)
	}
	chunk.ClearChanges() // Восстановленное состояние не считается изменением
	return chunk, true, nil
}

// Attach подключает хранилище к менеджеру мира обоими хуками
func (ws *WorldStorage) Attach(m *world.Manager) {
	m.SetRegenerateHook(ws.SaveChunk)
	m.SetLoadHook(func(coords vec.Vec2) (*world.Chunk, bool) {
		chunk, ok, err := ws.RestoreChunk(coords)
		if err != nil || !ok {
			return nil, false
		}
		return chunk, true
	})
}

func chunkKey(coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d", coords.X, coords.Z))
}

func packLocal(local vec.Vec3) string {
	return fmt.Sprintf("%d:%d:%d", local.X, local.Y, local.Z)
}

func unpackLocal(key string) (vec.Vec3, error) {
	var v vec.Vec3
	if _, err := fmt.Sscanf(key, "%d:%d:%d", &v.X, &v.Y, &v.Z); err != nil {
		return vec.Vec3{}, err
	}
	return v, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

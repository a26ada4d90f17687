package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/annel0/turtle-miner/internal/api"
	"github.com/annel0/turtle-miner/internal/eventbus"
	"github.com/annel0/turtle-miner/internal/mining"
	"github.com/annel0/turtle-miner/internal/nav"
	"github.com/annel0/turtle-miner/internal/storage"
	"github.com/annel0/turtle-miner/internal/turtle"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMiningRunE2E прогоняет полный цикл на симулируемом мире:
// REST запрос → оркестратор → туртл-симулятор → персистентность чанков.
func TestMiningRunE2E(t *testing.T) {
	// Изолируем Prometheus-метрики
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	// Генерируемый мир + BadgerDB персистентность во временной директории
	worldManager := world.NewManager(world.NewGenerator(12345))
	worldStorage, err := storage.NewWorldStorage(t.TempDir())
	require.NoError(t, err)
	defer worldStorage.Close()
	worldStorage.Attach(worldManager)

	spawn := vec.Vec2{X: 0, Z: 0}
	worldManager.LoadChunk(spawn)

	// Выбираем сухую колонну: поверхность выше уровня воды
	var column vec.Vec2
	var surfaceY int
	found := false
	for x := 0; x < 16 && !found; x++ {
		for z := 0; z < 16 && !found; z++ {
			c := vec.Vec2{X: x, Z: z}
			if y := world.SurfaceY(worldManager, c); y > world.SeaLevel {
				column, surfaceY, found = c, y, true
			}
		}
	}
	require.True(t, found, "в чанке (0,0) должна быть сухая колонна")

	// Шина событий: собираем жизненный цикл прогона
	bus := eventbus.NewMemoryBus(256)
	var mu sync.Mutex
	var events []string
	_, err = bus.Subscribe(context.Background(), eventbus.Filter{Sources: []string{"mining"}}, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		events = append(events, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Туртл стартует над поверхностью выбранной колонны
	start := vec.Vec3{X: column.X, Y: surfaceY + 1, Z: column.Z}
	sim := turtle.NewSimChannel(worldManager, start, turtle.North)
	sim.SetLatency(0)

	runRepo := storage.NewMemoryRunRepo()
	orch := mining.NewOrchestrator(worldManager, nav.NewPlanner(worldManager), sim, mining.Options{
		MaxPasses:      3,
		ShaftScanLimit: 64,
		Dispatch:       turtle.DispatchOptions{PollInterval: time.Millisecond},
	})
	orch.SetEventBus(bus)
	orch.SetRecorder(runRepo)

	restServer := api.NewRestServer(api.Config{
		Port:         ":0",
		World:        worldManager,
		Orchestrator: orch,
		Runs:         runRepo,
		TurtleStatus: sim,
	})

	// Два верхних вокселя колонны через REST
	targets := []map[string]int{
		{"x": column.X, "y": surfaceY, "z": column.Z},
		{"x": column.X, "y": surfaceY - 1, "z": column.Z},
	}
	body, err := json.Marshal(map[string]interface{}{"targets": targets})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	restServer.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	select {
	case <-orch.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("Прогон не завершился за отведенное время")
	}

	// Отчет через REST
	w = httptest.NewRecorder()
	restServer.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/current", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	rep := resp.Data.(map[string]interface{})
	assert.Equal(t, string(mining.StateCompleted), rep["state"])
	assert.Equal(t, float64(2), rep["processed"])
	assert.Equal(t, float64(0), rep["failed"])

	// Оба вокселя выкопаны в авторитетном мире
	for _, tg := range targets {
		pos := vec.Vec3{X: tg["x"], Y: tg["y"], Z: tg["z"]}
		assert.False(t, worldManager.IsSolid(pos), "воксель %v должен быть выкопан", pos)
	}

	// Персистентность: после выгрузки и загрузки чанка выкопанные
	// воксели не возрождаются генератором
	require.NoError(t, worldManager.UnloadChunk(spawn))
	worldManager.LoadChunk(spawn)
	for _, tg := range targets {
		pos := vec.Vec3{X: tg["x"], Y: tg["y"], Z: tg["z"]}
		assert.False(t, worldManager.IsSolid(pos), "воксель %v возродился после перезагрузки чанка", pos)
	}

	// Жизненный цикл в шине: RunStarted, затем RunCompleted
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, eventbus.EventRunStarted, events[0])
	assert.Equal(t, eventbus.EventRunCompleted, events[len(events)-1])
}

// TestMiningRunCancelE2E проверяет отмену прогона через REST
func TestMiningRunCancelE2E(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	worldManager := world.NewManager(nil)
	worldManager.LoadChunk(vec.Vec2{X: 0, Z: 0})

	// Глубокая колонна камня, чтобы прогон не успел завершиться
	for y := 20; y >= 1; y-- {
		worldManager.SetBlock(vec.Vec3{X: 5, Y: y, Z: 5}, block.StoneBlockID)
	}

	sim := turtle.NewSimChannel(worldManager, vec.Vec3{X: 5, Y: 21, Z: 5}, turtle.North)
	sim.SetLatency(10 * time.Millisecond)

	orch := mining.NewOrchestrator(worldManager, nav.NewPlanner(worldManager), sim, mining.Options{
		MaxPasses: 3,
		Dispatch:  turtle.DispatchOptions{PollInterval: time.Millisecond},
	})

	restServer := api.NewRestServer(api.Config{
		Port:         ":0",
		World:        worldManager,
		Orchestrator: orch,
		Runs:         storage.NewMemoryRunRepo(),
		TurtleStatus: sim,
	})

	var targets []map[string]int
	for y := 20; y >= 1; y-- {
		targets = append(targets, map[string]int{"x": 5, "y": y, "z": 5})
	}
	body, err := json.Marshal(map[string]interface{}{"targets": targets})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	restServer.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	// Даем прогону начаться и отменяем
	time.Sleep(50 * time.Millisecond)
	w = httptest.NewRecorder()
	restServer.Router().ServeHTTP(w, httptest.NewRequest("DELETE", "/api/runs/current", nil))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case <-orch.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("Отмененный прогон не завершился")
	}

	rep, ok := orch.LastReport()
	require.True(t, ok)
	assert.Equal(t, mining.StateCancelled, rep.State)
	assert.Greater(t, rep.Remaining(), 0, "у отмененного прогона должен остаться необработанный остаток")

	// Пины сняты — чанк можно выгрузить
	assert.NoError(t, worldManager.UnloadChunk(vec.Vec2{X: 0, Z: 0}))
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

// apiRig — мир без генератора, симулируемый туртл, оркестратор
// и REST сервер поверх них
type apiRig struct {
	world *world.Manager
	sim   *turtle.SimChannel
	orch  *mining.Orchestrator
	runs  *storage.MemoryRunRepo
	srv   *RestServer
	reg   *prometheus.Registry
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()

	// Изолируем Prometheus-метрики между тестами
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg

	w := world.NewManager(nil)
	w.LoadChunk(vec.Vec2{X: 0, Z: 0})

	sim := turtle.NewSimChannel(w, vec.Vec3{X: 5, Y: 12, Z: 5}, turtle.North)
	sim.SetLatency(0)

	orch := mining.NewOrchestrator(w, nav.NewPlanner(w), sim, mining.Options{
		MaxPasses:      3,
		ShaftScanLimit: 64,
		Dispatch:       turtle.DispatchOptions{PollInterval: time.Millisecond},
	})

	runs := storage.NewMemoryRunRepo()
	orch.SetRecorder(runs)

	srv := NewRestServer(Config{
		Port:         ":0",
		World:        w,
		Orchestrator: orch,
		Runs:         runs,
		TurtleStatus: sim,
	})
	return &apiRig{world: w, sim: sim, orch: orch, runs: runs, srv: srv, reg: reg}
}

// do выполняет запрос к серверу через httptest
func (r *apiRig) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.srv.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) GenericResponse {
	t.Helper()

	var resp GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (r *apiRig) waitRun(t *testing.T) {
	t.Helper()

	select {
	case <-r.orch.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("Прогон не завершился за отведенное время")
	}
}

func TestHealthEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartRunAndFetchReport(t *testing.T) {
	rig := newAPIRig(t)

	// Колонна из двух вокселей под туртлом
	rig.world.SetBlock(vec.Vec3{X: 5, Y: 11, Z: 5}, block.StoneBlockID)
	rig.world.SetBlock(vec.Vec3{X: 5, Y: 10, Z: 5}, block.StoneBlockID)

	w := rig.do(t, "POST", "/api/runs", StartRunRequest{
		Targets: []TargetVoxel{
			{X: 5, Y: 11, Z: 5},
			{X: 5, Y: 10, Z: 5},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	runID := data["run_id"].(string)
	require.NotEmpty(t, runID)

	rig.waitRun(t)

	// Текущий отчет
	w = rig.do(t, "GET", "/api/runs/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeResponse(t, w)
	rep := resp.Data.(map[string]interface{})
	assert.Equal(t, runID, rep["run_id"])
	assert.Equal(t, string(mining.StateCompleted), rep["state"])

	// Тот же отчет по идентификатору
	w = rig.do(t, "GET", "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// И в истории прогонов
	w = rig.do(t, "GET", "/api/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeResponse(t, w)
	list := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), list["total"])
}

func TestStartRunValidation(t *testing.T) {
	rig := newAPIRig(t)

	// Пустое тело запроса
	w := rig.do(t, "POST", "/api/runs", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Пустой набор целей
	w = rig.do(t, "POST", "/api/runs", StartRunRequest{Targets: []TargetVoxel{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "DELETE", "/api/runs/current", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
}

func TestGetUnknownRun(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "GET", "/api/runs/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTurtleStatusEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "GET", "/api/turtle", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	st := resp.Data.(map[string]interface{})
	pos := st["position"].(map[string]interface{})
	assert.Equal(t, float64(5), pos["x"])
	assert.Equal(t, float64(12), pos["y"])
}

func TestWorldScanEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "POST", "/api/world/scan", map[string]interface{}{
		"blocks": []world.WireBlock{
			{X: 1, Y: 8, Z: 1, Name: "minecraft:stone"},
			{X: 2, Y: 8, Z: 1, Name: ""}, // воздух
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["received"])
	assert.Equal(t, float64(1), data["applied"])

	id, loaded := rig.world.BlockAt(vec.Vec3{X: 1, Y: 8, Z: 1})
	require.True(t, loaded)
	assert.Equal(t, block.StoneBlockID, id)
}

func TestChunkInfoEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	rig.world.SetBlock(vec.Vec3{X: 3, Y: 9, Z: 3}, block.StoneBlockID)

	w := rig.do(t, "GET", "/api/world/chunk/0/0", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["blocks"])
	assert.Equal(t, true, data["has_changes"])

	// Незагруженный чанк
	w = rig.do(t, "GET", "/api/world/chunk/7/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunOperationMetrics(t *testing.T) {
	rig := newAPIRig(t)

	// Операции жизненного цикла прогонов считаются отдельным счетчиком
	rig.do(t, "GET", "/api/runs", nil)
	rig.do(t, "DELETE", "/api/runs/current", nil) // 409: прогона нет
	rig.do(t, "GET", "/health", nil)              // не операция прогона

	families, err := rig.reg.Gather()
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "miner_api_run_requests_total" {
			continue
		}
		for _, m := range mf.Metric {
			var op string
			for _, l := range m.Label {
				if l.GetName() == "operation" {
					op = l.GetValue()
				}
			}
			counts[op] += m.Counter.GetValue()
		}
	}

	assert.Equal(t, float64(1), counts["list"])
	assert.Equal(t, float64(1), counts["cancel"])
	assert.NotContains(t, counts, "start")
}

func TestRunOperationMapping(t *testing.T) {
	assert.Equal(t, "start", runOperation("POST", "/api/runs"))
	assert.Equal(t, "cancel", runOperation("DELETE", "/api/runs/current"))
	assert.Equal(t, "current", runOperation("GET", "/api/runs/current"))
	assert.Equal(t, "get", runOperation("GET", "/api/runs/:id"))
	assert.Equal(t, "list", runOperation("GET", "/api/runs"))
	assert.Equal(t, "", runOperation("GET", "/health"))
}

func TestStatsEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	w := rig.do(t, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	stats := resp.Data.(map[string]interface{})
	require.Contains(t, stats, "server")
	require.Contains(t, stats, "world")

	worldStats := stats["world"].(map[string]interface{})
	assert.Equal(t, float64(1), worldStats["loaded_chunks"])
}

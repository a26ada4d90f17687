package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/turtle-miner/internal/mining"
	"github.com/annel0/turtle-miner/internal/storage"
	"github.com/annel0/turtle-miner/internal/turtle"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// StatusSource отдает последний известный статус туртла.
// Реализуется и HTTP-каналом, и симулятором.
type StatusSource interface {
	LastStatus() (turtle.Status, bool)
}

// RestServer — REST API управления горнодобывающими прогонами
type RestServer struct {
	router       *gin.Engine
	world        *world.Manager
	orchestrator *mining.Orchestrator
	runs         storage.RunRepo
	turtleStatus StatusSource
	port         string
	metrics      *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port         string               // Порт для запуска сервера (":8090")
	World        *world.Manager       // Авторитетный мир
	Orchestrator *mining.Orchestrator // Оркестратор прогонов
	Runs         storage.RunRepo      // Репозиторий отчетов (может быть nil)
	TurtleStatus StatusSource         // Источник статуса туртла (может быть nil)
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8090"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(requestLogger())

	router.Use(otelgin.Middleware("miner_api"))

	metrics := newHTTPMetrics()
	router.Use(metrics.handler())
	metrics.registerEndpoint(router)

	server := &RestServer{
		router:       router,
		world:        config.World,
		orchestrator: config.Orchestrator,
		runs:         config.Runs,
		turtleStatus: config.TurtleStatus,
		port:         config.Port,
		metrics:      NewServerMetrics(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", rs.handleStartRun)
			runs.GET("", rs.handleListRuns)
			runs.GET("/current", rs.handleCurrentRun)
			runs.DELETE("/current", rs.handleCancelRun)
			runs.GET("/:id", rs.handleGetRun)
		}

		api.GET("/turtle", rs.handleTurtleStatus)
		api.POST("/world/scan", rs.handleWorldScan)
		api.GET("/world/chunk/:x/:z", rs.handleChunkInfo)
		api.GET("/stats", rs.handleStats)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StartRunRequest — запрос на запуск прогона
type StartRunRequest struct {
	Targets []TargetVoxel `json:"targets" binding:"required"`
}

// TargetVoxel — один целевой воксель в запросе
type TargetVoxel struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// handleStartRun запускает горнодобывающий прогон
func (rs *RestServer) handleStartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	if len(req.Targets) == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Пустой набор целей",
		})
		return
	}

	targets := make([]vec.Vec3, len(req.Targets))
	for i, t := range req.Targets {
		targets[i] = vec.Vec3{X: t.X, Y: t.Y, Z: t.Z}
	}

	runID, err := rs.orchestrator.Start(targets)
	if err != nil {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Прогон запущен",
		Data: map[string]interface{}{
			"run_id":  runID,
			"targets": len(targets),
		},
	})
}

// handleCancelRun отменяет активный прогон
func (rs *RestServer) handleCancelRun(c *gin.Context) {
	if !rs.orchestrator.Cancel() {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Активного прогона нет",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Прогон отменяется",
	})
}

// handleCurrentRun возвращает отчет текущего (или последнего) прогона
func (rs *RestServer) handleCurrentRun(c *gin.Context) {
	rep, ok := rs.orchestrator.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Прогонов еще не было",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Отчет прогона",
		Data:    rep,
	})
}

// handleGetRun возвращает отчет прогона по идентификатору
func (rs *RestServer) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	// Живой отчет приоритетнее сохраненного
	if rep, ok := rs.orchestrator.LastReport(); ok && rep.RunID == runID {
		c.JSON(http.StatusOK, GenericResponse{
			Success: true,
			Message: "Отчет прогона",
			Data:    rep,
		})
		return
	}

	if rs.runs == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Прогон не найден",
		})
		return
	}

	rep, ok, err := rs.runs.GetReport(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения отчета",
		})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Прогон не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Отчет прогона",
		Data:    rep,
	})
}

// handleListRuns возвращает последние отчеты прогонов
func (rs *RestServer) handleListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if rs.runs == nil {
		c.JSON(http.StatusOK, GenericResponse{
			Success: true,
			Message: "История прогонов недоступна",
			Data:    map[string]interface{}{"runs": []mining.Report{}, "total": 0},
		})
		return
	}

	reports, err := rs.runs.ListReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения истории прогонов",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "История прогонов",
		Data: map[string]interface{}{
			"runs":  reports,
			"total": len(reports),
		},
	})
}

// handleTurtleStatus возвращает последний известный статус туртла
func (rs *RestServer) handleTurtleStatus(c *gin.Context) {
	if rs.turtleStatus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Канал туртла не подключен",
		})
		return
	}

	st, ok := rs.turtleStatus.LastStatus()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Статус туртла еще не получен",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статус туртла",
		Data:    st,
	})
}

// handleWorldScan применяет отчет сканирования туртла к миру
func (rs *RestServer) handleWorldScan(c *gin.Context) {
	var req struct {
		Blocks []world.WireBlock `json:"blocks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	applied := rs.world.ApplyWireBlocks(req.Blocks)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Скан применен",
		Data: map[string]interface{}{
			"received": len(req.Blocks),
			"applied":  applied,
		},
	})
}

// handleChunkInfo возвращает сводку по чанку
func (rs *RestServer) handleChunkInfo(c *gin.Context) {
	x, errX := strconv.Atoi(c.Param("x"))
	z, errZ := strconv.Atoi(c.Param("z"))
	if errX != nil || errZ != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверные координаты чанка",
		})
		return
	}

	coords := vec.Vec2{X: x, Z: z}
	chunk, loaded := rs.world.GetChunk(coords)
	if !loaded {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Чанк не загружен",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сводка чанка",
		Data: map[string]interface{}{
			"coords":      coords,
			"blocks":      chunk.BlockCount(),
			"has_changes": chunk.HasChanges(),
			"pins":        rs.world.PinCount(coords),
		},
	})
}

// handleStats возвращает статистику сервиса
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()
	stats["world"] = map[string]interface{}{
		"loaded_chunks": rs.world.ChunkCount(),
	}
	stats["orchestrator"] = map[string]interface{}{
		"state": rs.orchestrator.State(),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервиса
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер
func (rs *RestServer) Start() error {
	return rs.router.Run(rs.port)
}

// Router возвращает gin-роутер (для тестов)
func (rs *RestServer) Router() http.Handler {
	return rs.router
}

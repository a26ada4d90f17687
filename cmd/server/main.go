package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/turtle-miner/internal/api"
	"github.com/annel0/turtle-miner/internal/config"
	"github.com/annel0/turtle-miner/internal/eventbus"
	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/mining"
	"github.com/annel0/turtle-miner/internal/nav"
	"github.com/annel0/turtle-miner/internal/observability"
	"github.com/annel0/turtle-miner/internal/storage"
	"github.com/annel0/turtle-miner/internal/turtle"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (или ENV MINER_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.Init("miner"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.Close()

	logging.Info("⛏️  Запуск Turtle Miner: планировщик раскопок и REST API...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
		logging.Info("📋 Конфигурация не задана, используются значения по умолчанию")
	}

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("📡 Конфигурация: REST=%s, sim=%v, turtle=%s", restPort, cfg.World.Sim, cfg.Turtle.GetBaseURL())

	ctx := context.Background()

	// === TELEMETRY ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "turtle-miner")
	if err != nil {
		logging.Warn("⚠️  OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	var jsBus *eventbus.JetStreamBus
	if cfg.EventBus.URL != "" {
		jsBus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, cfg.EventBus.GetRetention())
		if err != nil {
			logging.Error("❌ Ошибка подключения к NATS: %v", err)
			log.Fatalf("❌ Ошибка подключения к NATS: %v", err)
		}
		bus = jsBus
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Info("📨 Шина событий: in-memory")
	}
	eventbus.Init(bus)

	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️  LoggingListener не запущен: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.Start()

	// === МИР ===
	var generator *world.Generator
	if cfg.World.Sim {
		generator = world.NewGenerator(cfg.World.Seed)
	}
	worldManager := world.NewManager(generator)

	worldStorage, err := storage.NewWorldStorage(cfg.World.GetDataPath())
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища мира: %v", err)
		log.Fatalf("❌ Ошибка открытия хранилища мира: %v", err)
	}
	worldStorage.Attach(worldManager)

	// === РЕПОЗИТОРИЙ ПРОГОНОВ ===
	var runRepo storage.RunRepo
	if cfg.Redis.Addr != "" {
		runRepo, err = storage.NewRedisRunRepo(&storage.RedisRunConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logging.Error("❌ Ошибка подключения к Redis: %v", err)
			log.Fatalf("❌ Ошибка подключения к Redis: %v", err)
		}
	} else {
		runRepo = storage.NewMemoryRunRepo()
		logging.Info("💾 Репозиторий прогонов: in-memory")
	}

	// === КАНАЛ ТУРТЛА ===
	var channel turtle.CommandChannel
	var statusSource api.StatusSource
	if cfg.World.Sim {
		spawn := vec.Vec2{X: 0, Z: 0}
		worldManager.LoadChunk(spawn)
		start := vec.Vec3{X: 8, Y: world.SurfaceY(worldManager, vec.Vec2{X: 8, Z: 8}) + 1, Z: 8}
		sim := turtle.NewSimChannel(worldManager, start, turtle.North)
		channel = sim
		statusSource = sim
		logging.Info("🤖 Туртл: симулятор, позиция (%d,%d,%d)", start.X, start.Y, start.Z)
	} else {
		httpChannel := turtle.NewHTTPChannel(cfg.Turtle.GetBaseURL(), cfg.Turtle.GetLabel(), cfg.Turtle.GetPollInterval())
		defer httpChannel.Close()
		channel = httpChannel
		statusSource = httpChannel
		logging.Info("🤖 Туртл: %s @ %s", cfg.Turtle.GetLabel(), cfg.Turtle.GetBaseURL())
	}

	// === ОРКЕСТРАТОР ===
	planner := nav.NewPlanner(worldManager)
	orchestrator := mining.NewOrchestrator(worldManager, planner, channel, mining.Options{
		MaxPasses:        cfg.Mining.GetMaxPasses(),
		ShaftScanLimit:   cfg.Mining.GetShaftScanLimit(),
		ArrivalTolerance: cfg.Mining.GetArrivalTolerance(),
		Dispatch: turtle.DispatchOptions{
			PollInterval: cfg.Turtle.GetPollInterval(),
			AckTimeout:   cfg.Mining.GetAckTimeout(),
		},
	})
	orchestrator.SetEventBus(bus)
	orchestrator.SetRecorder(runRepo)

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:         restPort,
		World:        worldManager,
		Orchestrator: orchestrator,
		Runs:         runRepo,
		TurtleStatus: statusSource,
	})

	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ Ошибка REST сервера: %v", err)
			log.Fatalf("❌ Ошибка REST сервера: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", restPort)
	logging.Info("💡 Запуск прогона:")
	logging.Info("   curl -X POST http://localhost%s/api/runs -H 'Content-Type: application/json' -d '{\"targets\":[{\"x\":5,\"y\":11,\"z\":5}]}'", restPort)

	// Ждем сигнала для завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	if orchestrator.Cancel() {
		logging.Info("🛑 Активный прогон отменяется...")
		<-orchestrator.Done()
	}

	busMetrics.Stop()
	if jsBus != nil {
		jsBus.Close()
	}

	if err := runRepo.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия репозитория прогонов: %v", err)
	}
	if err := worldStorage.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища мира: %v", err)
	}
	if err := shutdownTelemetry(ctx); err != nil {
		logging.Error("❌ Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервис успешно остановлен")
}

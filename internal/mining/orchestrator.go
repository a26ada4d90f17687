package mining

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/annel0/turtle-miner/internal/eventbus"
	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/nav"
	"github.com/annel0/turtle-miner/internal/observability"
	"github.com/annel0/turtle-miner/internal/turtle"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options — настройки оркестратора
type Options struct {
	MaxPasses        int                    // Максимум проходов по отложенным вокселям
	ShaftScanLimit   int                    // Потолок сканирования шахты
	ArrivalTolerance float64                // Допуск прибытия в блоках
	Dispatch         turtle.DispatchOptions // Параметры ожидания подтверждений
}

// Orchestrator ведет один горнодобывающий прогон от постановки целей до
// отчета. Все зависимости передаются явно при конструировании; поиска
// коллабораторов в рантайме нет.
//
// Жизненный цикл: Idle → Running → (Completed | Cancelled) → Idle.
// Одновременно активен не более одного прогона; повторный Start при
// активном прогоне отклоняется без очереди.
type Orchestrator struct {
	world     *world.Manager
	planner   *nav.Planner
	channel   turtle.CommandChannel
	optimizer ColumnOptimizer
	tracker   *ReachabilityTracker
	opts      Options

	bus      eventbus.EventBus // Может быть nil
	recorder RunRecorder       // Может быть nil

	mu     sync.Mutex
	state  RunState
	report *Report
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator собирает оркестратор с явными зависимостями
func NewOrchestrator(w *world.Manager, planner *nav.Planner, channel turtle.CommandChannel, opts Options) *Orchestrator {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 3
	}
	if opts.ShaftScanLimit <= 0 {
		opts.ShaftScanLimit = 128
	}
	if opts.ArrivalTolerance <= 0 {
		opts.ArrivalTolerance = 0.5
	}

	return &Orchestrator{
		world:   w,
		planner: planner,
		channel: channel,
		tracker: NewReachabilityTracker(w),
		opts:    opts,
		state:   StateIdle,
	}
}

// SetEventBus подключает шину событий прогонов
func (o *Orchestrator) SetEventBus(bus eventbus.EventBus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bus = bus
}

// SetRecorder подключает хранилище отчетов
func (o *Orchestrator) SetRecorder(r RunRecorder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorder = r
}

// State возвращает текущее состояние оркестратора
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastReport возвращает копию отчета текущего или последнего прогона
func (o *Orchestrator) LastReport() (Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.report == nil {
		return Report{}, false
	}
	return *o.report, true
}

// Done возвращает канал, закрываемый по завершении текущего прогона.
// nil, если прогона нет.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Start запускает прогон по набору целевых вокселей.
// Отклоняется, если прогон уже идет или набор пуст.
func (o *Orchestrator) Start(targets []vec.Vec3) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		return "", fmt.Errorf("прогон уже выполняется")
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("пустой набор целей")
	}

	// Дедупликация: воксель обрабатывается не более одного раза
	seen := make(map[vec.Vec3]struct{}, len(targets))
	unique := make([]vec.Vec3, 0, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	// Пины на все чанки, задетые целями: стриминг не должен выгружать
	// рабочую зону до конца прогона
	pinned := make(map[vec.Vec2]struct{})
	for _, t := range unique {
		pinned[o.world.ChunkCoordOf(t)] = struct{}{}
	}
	o.world.PinChunks(pinned)

	runID := uuid.NewString()
	o.report = &Report{
		RunID:     runID,
		State:     StateRunning,
		Total:     len(unique),
		StartedAt: time.Now().UTC(),
	}
	o.state = StateRunning
	o.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.publish(eventbus.EventRunStarted, runID, nil)
	logging.Info("🚀 Прогон %s: %d целей, %d чанков запиновано", runID, len(unique), len(pinned))

	go o.run(ctx, unique, pinned)
	return runID, nil
}

// Cancel прерывает активный прогон. Безопасна в любой точке ожидания:
// текущий план отбрасывается, мир остается в уже зафиксированном
// состоянии, пины снимаются.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// run — основной цикл прогона (отдельная горутина)
func (o *Orchestrator) run(ctx context.Context, targets []vec.Vec3, pinned map[vec.Vec2]struct{}) {
	o.mu.Lock()
	runID := o.report.RunID
	o.mu.Unlock()

	ctx, span := observability.Tracer("mining").Start(ctx, "mining.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.targets", len(targets)),
		))

	mined := make(map[vec.Vec2]struct{}) // Тронутые чанки: одна регенерация на чанк, не на воксель
	drv := &driver{
		world:   o.world,
		channel: o.channel,
		opts:    o.opts.Dispatch,
		onDig: func(pos vec.Vec3) {
			mined[o.world.ChunkCoordOf(pos)] = struct{}{}
		},
	}

	final := StateCompleted
	defer func() {
		o.finalize(final, pinned, mined)
		span.SetAttributes(attribute.String("run.state", string(final)))
		span.End()
	}()

	// Бутстрап: если набор замурован, пробиваем шахту доступа
	shaft := NewShaftBootstrapper(o.world, o.planner, o.tracker, drv, o.opts.ShaftScanLimit)
	if err := shaft.EnsureAccess(ctx, targets); err != nil {
		if ctx.Err() != nil {
			final = StateCancelled
			return
		}
		// Неудачный бутстрап не фатален: недоступные воксели осядут в отказах
		logging.Warn("Бутстрап шахты не удался: %v", err)
	}
	o.regenerate(mined)

	plan := o.optimizer.Optimize(targets, drv.pos())
	var deferred []vec.Vec3

	for pass := 1; pass <= o.opts.MaxPasses; pass++ {
		o.mu.Lock()
		o.report.Passes = pass
		o.mu.Unlock()

		var attempted int
		var err error
		deferred, attempted, err = o.minePass(ctx, drv, plan, deferred)

		// Батч-регенерация тронутых чанков на границе прохода
		o.regenerate(mined)

		if err != nil {
			final = StateCancelled
			return
		}

		if len(deferred) == 0 {
			return // Completed: отложенных не осталось
		}

		if len(deferred) == attempted {
			// Нулевой прогресс: ни один воксель не стал досягаемым.
			// Дальнейшие проходы бессмысленны — оставшиеся признаются отказами.
			logging.Warn("Проход %d без прогресса: %d вокселей недостижимы", pass, len(deferred))
			o.addFailed(len(deferred))
			return
		}

		if pass == o.opts.MaxPasses {
			o.addFailed(len(deferred))
			return
		}

		// Переупорядочиваем отложенные для следующего прохода
		plan = o.optimizer.Optimize(deferred, drv.pos())
		deferred = nil
	}
}

// minePass выполняет один проход по плану. Возвращает отложенные воксели
// и число вокселей, получивших исход в этом проходе. Ошибка означает отмену.
func (o *Orchestrator) minePass(ctx context.Context, drv *driver, plan []vec.Vec3, deferred []vec.Vec3) ([]vec.Vec3, int, error) {
	var (
		prevCol  vec.Vec2
		havePrev bool
		skipCol  vec.Vec2
		skipping bool
	)

	// План растет по ходу прохода: на границах колонн в него возвращаются
	// отложенные воксели, успевшие стать досягаемыми
	for i := 0; i < len(plan); i++ {
		if ctx.Err() != nil {
			// Отмена: остаток плана отбрасывается без отката мира
			return deferred, i, ctx.Err()
		}

		v := plan[i]
		col := v.XZ()

		if !havePrev || !col.Equals(prevCol) {
			// Граница колонн: внутрипроходная попытка вернуть отложенные,
			// как только соседний блок мог открыть путь
			if len(deferred) > 0 {
				var recovered []vec.Vec3
				recovered, deferred = o.tracker.RetryDeferred(deferred)
				if len(recovered) > 0 {
					logging.Debug("Внутрипроходный возврат: %d вокселей снова в плане", len(recovered))
					plan = append(plan, recovered...)
				}
			}
			skipping = false
		}

		if skipping && col.Equals(skipCol) {
			// Колонна уже признана недосягаемой — не тратим навигацию
			deferred = append(deferred, v)
			continue
		}

		o.mineVoxel(ctx, drv, v, col, prevCol, havePrev, &deferred, &skipping, &skipCol)
		prevCol = col
		havePrev = true
	}

	return deferred, len(plan), nil
}

// mineVoxel обрабатывает один целевой воксель: навигация, прокоп, учет
func (o *Orchestrator) mineVoxel(ctx context.Context, drv *driver, v vec.Vec3, col, prevCol vec.Vec2, havePrev bool, deferred *[]vec.Vec3, skipping *bool, skipCol *vec.Vec2) {
	// Чанк выгружен — подтвердить состояние нельзя, откладываем
	if !o.world.ChunkLoaded(o.world.ChunkCoordOf(v)) {
		*deferred = append(*deferred, v)
		return
	}

	// Цель уже пуста (шахта или соседний прокоп): повторное удаление
	// идемпотентно, но в обработанные воксель не записываем дважды
	if id, _ := o.world.BlockAt(v); !block.IsSolidID(id) {
		o.addSkipped(1)
		return
	}

	actor := drv.pos()

	// Дешевый случай: та же колонна, актор прямо над целью —
	// прокоп вниз и спуск в освобожденное место без перепланирования
	if havePrev && col.Equals(prevCol) && actor.Equals(v.Up()) {
		if err := drv.digAt(ctx, v); err != nil {
			o.noteVoxelFailure("прокоп вниз", v, err)
			return
		}
		// Спуск в освобожденный воксель; неудача спуска не отменяет прокоп
		if err := drv.step(ctx, v, false); err != nil {
			logging.Debug("Спуск в (%d,%d,%d) не удался: %v", v.X, v.Y, v.Z, err)
		}
		o.addProcessed(1)
		return
	}

	// Лучшая смежная позиция для прокопа
	adj, ok := o.planner.BestAdjacentPosition(v, actor)
	if !ok {
		// Подступиться неоткуда: откладываем воксель и остаток его колонны
		*deferred = append(*deferred, v)
		*skipping = true
		*skipCol = col
		getMetrics().voxelsDeferred.Inc()
		return
	}

	if !actor.Equals(adj) {
		path := o.planner.FindPath(actor, adj, nil)
		if !path.Success {
			o.noteVoxelFailure("поиск пути", v, nil)
			return
		}
		if err := drv.moveAlong(ctx, path.Waypoints, false); err != nil {
			if ctx.Err() != nil {
				return
			}
			o.noteVoxelFailure("навигация", v, err)
			return
		}
	}

	// Проверка прибытия с допуском
	if !withinTolerance(o.channel.CurrentPosition(), adj, o.opts.ArrivalTolerance) {
		o.noteVoxelFailure("прибытие вне допуска", v, nil)
		return
	}

	if err := drv.digAt(ctx, v); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.noteVoxelFailure("прокоп", v, err)
		return
	}
	o.addProcessed(1)
}

// finalize — единый терминальный путь прогона: парный unpin, финальная
// регенерация, отчет, события, метрики, возврат в Idle
func (o *Orchestrator) finalize(final RunState, pinned, mined map[vec.Vec2]struct{}) {
	o.world.UnpinChunks(pinned)
	o.regenerate(mined)

	o.mu.Lock()
	o.report.State = final
	o.report.FinishedAt = time.Now().UTC()
	rep := *o.report
	done := o.done
	o.state = StateIdle
	o.cancel = nil
	o.mu.Unlock()

	m := getMetrics()
	m.runsTotal.WithLabelValues(string(final)).Inc()
	m.runDuration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())

	if o.recorder != nil {
		if err := o.recorder.SaveReport(context.Background(), &rep); err != nil {
			logging.Error("Сохранение отчета прогона %s: %v", rep.RunID, err)
		}
	}

	eventType := eventbus.EventRunCompleted
	if final == StateCancelled {
		eventType = eventbus.EventRunCancelled
	}
	payload, _ := json.Marshal(rep)
	o.publish(eventType, rep.RunID, payload)

	logging.Info("🏁 Прогон %s: %s, выкопано %d, пропущено %d, отказов %d (из %d, проходов %d)",
		rep.RunID, rep.State, rep.Processed, rep.Skipped, rep.Failed, rep.Total, rep.Passes)

	close(done)
}

// regenerate запускает регенерацию всех тронутых чанков.
// Вызывается на границах проходов и при завершении — O(чанков), не O(вокселей).
func (o *Orchestrator) regenerate(mined map[vec.Vec2]struct{}) {
	for coords := range mined {
		o.world.RegenerateChunk(coords)
	}
}

func (o *Orchestrator) addProcessed(n int) {
	o.mu.Lock()
	o.report.Processed += n
	o.mu.Unlock()
	getMetrics().voxelsProcessed.Add(float64(n))
}

func (o *Orchestrator) addSkipped(n int) {
	o.mu.Lock()
	o.report.Skipped += n
	o.mu.Unlock()
}

func (o *Orchestrator) addFailed(n int) {
	o.mu.Lock()
	o.report.Failed += n
	o.mu.Unlock()
	getMetrics().voxelsFailed.Add(float64(n))
}

// noteVoxelFailure учитывает локальный отказ: воксель пропускается,
// прогон продолжается. За границу оркестратора ошибки не выходят.
func (o *Orchestrator) noteVoxelFailure(stage string, v vec.Vec3, err error) {
	if err != nil {
		logging.Warn("Воксель (%d,%d,%d): %s: %v", v.X, v.Y, v.Z, stage, err)
	} else {
		logging.Warn("Воксель (%d,%d,%d): %s", v.X, v.Y, v.Z, stage)
	}
	o.addFailed(1)
}

// publish отправляет событие прогона в шину, если она подключена
func (o *Orchestrator) publish(eventType, runID string, payload []byte) {
	if o.bus == nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        "mining",
		EventType:     eventType,
		Version:       1,
		CorrelationID: runID,
		Priority:      5,
		Payload:       payload,
	}
	if err := o.bus.Publish(context.Background(), ev); err != nil {
		logging.Warn("Публикация события %s: %v", eventType, err)
	}
}

// withinTolerance проверяет, что фактическая позиция актора в пределах
// допуска от целевого вокселя
func withinTolerance(p turtle.Position, v vec.Vec3, tol float64) bool {
	dx := p.X - float64(v.X)
	dy := p.Y - float64(v.Y)
	dz := p.Z - float64(v.Z)
	return math.Sqrt(dx*dx+dy*dy+dz*dz) <= tol
}

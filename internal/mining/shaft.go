package mining

import (
	"context"
	"fmt"

	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/nav"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
)

// ShaftBootstrapper пробивает вертикальную шахту доступа, когда целевой
// набор полностью замурован: ни у одного вокселя верхнего слоя нет
// доступного соседа. Шахта идет от ближайшей открытой поверхности вниз
// до верха ближайшей к актору целевой колонны.
type ShaftBootstrapper struct {
	world     *world.Manager
	planner   *nav.Planner
	tracker   *ReachabilityTracker
	driver    *driver
	scanLimit int // Потолок сканирования вверх (защита от незагруженных данных)
}

// NewShaftBootstrapper собирает бутстраппер шахты
func NewShaftBootstrapper(w *world.Manager, planner *nav.Planner, tracker *ReachabilityTracker, drv *driver, scanLimit int) *ShaftBootstrapper {
	return &ShaftBootstrapper{
		world:     w,
		planner:   planner,
		tracker:   tracker,
		driver:    drv,
		scanLimit: scanLimit,
	}
}

// EnsureAccess гарантирует, что к целевому набору есть хотя бы один вход.
// Может мутировать мир и двигать актора. Отсутствие поверхности в пределах
// сканирования не является ошибкой: прогон продолжится, и недоступные
// воксели осядут в счетчике отказов обычным порядком.
func (sb *ShaftBootstrapper) EnsureAccess(ctx context.Context, targets []vec.Vec3) error {
	if len(targets) == 0 {
		return nil
	}

	// 1. Верхний слой целей
	maxY := targets[0].Y
	for _, t := range targets {
		if t.Y > maxY {
			maxY = t.Y
		}
	}

	// 2. Если хоть один верхний воксель уже доступен, шахта не нужна
	for _, t := range targets {
		if t.Y == maxY && sb.tracker.HasAccessibleNeighbor(t) {
			return nil
		}
	}

	logging.Info("⛏️ Целевой набор замурован, пробиваем шахту доступа")

	// 3. Ближайшая к актору целевая колонна
	actor := sb.driver.pos()
	colTop := sb.nearestColumnTop(targets, actor)

	// 4. Ищем поверхность над верхом колонны
	entry, found := sb.findSurfaceEntry(colTop)
	if !found {
		logging.Warn("Поверхность над колонной (%d,%d) не найдена в пределах %d блоков, шахта пропущена",
			colTop.X, colTop.Z, sb.scanLimit)
		return nil
	}

	// 5. Ведем актора к точке входа. На время подхода разрешаем
	// авто-раскопку и обязательно восстанавливаем прежний режим.
	prev := sb.planner.SetAutoExcavate(true)
	defer sb.planner.SetAutoExcavate(prev)

	if !actor.Equals(entry) {
		path := sb.planner.FindPath(actor, entry, &nav.Options{AutoExcavate: true})
		if !path.Success {
			return fmt.Errorf("путь к точке входа шахты (%d,%d,%d) не найден", entry.X, entry.Y, entry.Z)
		}
		if err := sb.driver.moveAlong(ctx, path.Waypoints, true); err != nil {
			return fmt.Errorf("подход к точке входа шахты: %w", err)
		}
	}

	// 6. Спуск: прокоп вниз + шаг вниз до верха колонны
	if err := sb.driver.descendTo(ctx, colTop.Y); err != nil {
		return fmt.Errorf("спуск шахты: %w", err)
	}

	logging.Info("⛏️ Шахта пробита: вход (%d,%d,%d), низ y=%d", entry.X, entry.Y, entry.Z, colTop.Y)
	return nil
}

// nearestColumnTop возвращает верхний воксель ближайшей к актору колонны
func (sb *ShaftBootstrapper) nearestColumnTop(targets []vec.Vec3, actor vec.Vec3) vec.Vec3 {
	tops := make(map[vec.Vec2]vec.Vec3)
	order := make([]vec.Vec2, 0)
	for _, t := range targets {
		key := t.XZ()
		top, exists := tops[key]
		if !exists {
			tops[key] = t
			order = append(order, key)
		} else if t.Y > top.Y {
			tops[key] = t
		}
	}

	best := order[0]
	bestDist := actor.XZ().DistanceTo(best)
	for _, key := range order[1:] {
		if d := actor.XZ().DistanceTo(key); d < bestDist {
			best = key
			bestDist = d
		}
	}
	return tops[best]
}

// findSurfaceEntry сканирует колонну вверх от верхней цели до первого
// нетвердого вокселя. Сканирование ограничено scanLimit, чтобы битые или
// незагруженные данные не зациклили подъем.
func (sb *ShaftBootstrapper) findSurfaceEntry(colTop vec.Vec3) (vec.Vec3, bool) {
	if !sb.world.ChunkLoaded(sb.world.ChunkCoordOf(colTop)) {
		return vec.Vec3{}, false
	}

	for dy := 1; dy <= sb.scanLimit; dy++ {
		probe := vec.Vec3{X: colTop.X, Y: colTop.Y + dy, Z: colTop.Z}
		if !sb.world.IsSolid(probe) {
			return probe, true
		}
	}
	return vec.Vec3{}, false
}

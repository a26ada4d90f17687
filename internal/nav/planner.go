package nav

import (
	"container/heap"
	"sync"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
)

// DefaultMaxNodes ограничивает объем поиска A*, чтобы недостижимая цель
// не заставляла обходить весь загруженный мир.
const DefaultMaxNodes = 8192

// Стоимости шагов: прокоп дороже свободного перемещения,
// чтобы авто-раскопка выбирала существующие полости.
const (
	moveCost = 1
	digCost  = 3
)

// Options настраивают один вызов поиска пути
type Options struct {
	AutoExcavate bool // Разрешить прокладку сквозь копаемые блоки
	MaxNodes     int  // 0 = DefaultMaxNodes
}

// Path — результат поиска пути
type Path struct {
	Success   bool
	Waypoints []vec.Vec3 // Последовательность вокселей от from (не включая) до to (включая)
}

// Planner ищет пути в воксельной сетке мира.
// Незагруженные чанки непроходимы: планировать сквозь неизвестное нельзя.
type Planner struct {
	world *world.Manager

	mu           sync.Mutex
	autoExcavate bool // Режим по умолчанию для вызовов без Options
}

// NewPlanner создаёт планировщик поверх менеджера мира
func NewPlanner(w *world.Manager) *Planner {
	return &Planner{world: w}
}

// AutoExcavate возвращает текущий режим авто-раскопки
func (p *Planner) AutoExcavate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoExcavate
}

// SetAutoExcavate переключает режим авто-раскопки и возвращает прежнее
// значение, чтобы вызывающий мог его восстановить.
func (p *Planner) SetAutoExcavate(v bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.autoExcavate
	p.autoExcavate = v
	return prev
}

// passable отвечает, может ли туртл занять воксель (или прокопать его)
func (p *Planner) passable(pos vec.Vec3, autoExcavate bool) (ok bool, needsDig bool) {
	id, loaded := p.world.BlockAt(pos)
	if !loaded {
		return false, false
	}
	cat := block.CategoryOf(id)
	if !cat.IsSolid() {
		// Жидкость проходима для туртла, но не для пешего агента;
		// здесь моделируем туртла.
		return true, false
	}
	if autoExcavate && cat.Diggable() {
		return true, true
	}
	return false, false
}

// FindPath ищет путь A* между двумя вокселями.
// opts может быть nil — тогда используется режим планировщика по умолчанию.
func (p *Planner) FindPath(from, to vec.Vec3, opts *Options) Path {
	autoExcavate := p.AutoExcavate()
	maxNodes := DefaultMaxNodes
	if opts != nil {
		autoExcavate = opts.AutoExcavate
		if opts.MaxNodes > 0 {
			maxNodes = opts.MaxNodes
		}
	}

	if from.Equals(to) {
		return Path{Success: true}
	}
	if ok, _ := p.passable(to, autoExcavate); !ok {
		return Path{}
	}

	open := &nodeQueue{}
	heap.Init(open)
	heap.Push(open, &node{pos: from, g: 0, f: from.ManhattanTo(to)})

	cameFrom := make(map[vec.Vec3]vec.Vec3)
	gScore := map[vec.Vec3]int{from: 0}
	closed := make(map[vec.Vec3]struct{})

	for open.Len() > 0 && len(closed) < maxNodes {
		current := heap.Pop(open).(*node)
		if current.pos.Equals(to) {
			return Path{Success: true, Waypoints: reconstruct(cameFrom, from, to)}
		}
		if _, seen := closed[current.pos]; seen {
			continue
		}
		closed[current.pos] = struct{}{}

		for _, next := range current.pos.Neighbors6() {
			if _, seen := closed[next]; seen {
				continue
			}
			ok, needsDig := p.passable(next, autoExcavate)
			if !ok {
				continue
			}
			stepCost := moveCost
			if needsDig {
				stepCost = digCost
			}
			tentative := current.g + stepCost
			if prev, exists := gScore[next]; exists && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current.pos
			heap.Push(open, &node{pos: next, g: tentative, f: tentative + next.ManhattanTo(to)})
		}
	}

	return Path{}
}

// BestAdjacentPosition выбирает из шести соседей цели воксель, который
// туртл может занять: чанк загружен и воксель не твердый. Из подходящих
// берется ближайший к актору; при равенстве — в фиксированном порядке осей.
// ok=false, если ни один сосед не подходит.
func (p *Planner) BestAdjacentPosition(target, actorPos vec.Vec3) (vec.Vec3, bool) {
	best := vec.Vec3{}
	bestDist := -1
	for _, n := range target.Neighbors6() {
		if !p.world.ChunkLoaded(p.world.ChunkCoordOf(n)) {
			continue
		}
		if p.world.IsSolid(n) {
			continue
		}
		d := n.ManhattanTo(actorPos)
		if bestDist < 0 || d < bestDist {
			best = n
			bestDist = d
		}
	}
	return best, bestDist >= 0
}

// reconstruct разворачивает цепочку cameFrom в прямой список вейпоинтов
func reconstruct(cameFrom map[vec.Vec3]vec.Vec3, from, to vec.Vec3) []vec.Vec3 {
	var rev []vec.Vec3
	for cur := to; !cur.Equals(from); cur = cameFrom[cur] {
		rev = append(rev, cur)
	}
	out := make([]vec.Vec3, len(rev))
	for i, w := range rev {
		out[len(rev)-1-i] = w
	}
	return out
}

//================ Очередь с приоритетом для A* =================//

type node struct {
	pos   vec.Vec3
	g     int // Стоимость от старта
	f     int // g + эвристика
	index int
}

type nodeQueue []*node

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].f < q[j].f }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *nodeQueue) Push(x interface{}) { n := x.(*node); n.index = len(*q); *q = append(*q, n) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

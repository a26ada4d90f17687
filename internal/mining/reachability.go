package mining

import (
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
)

// ReachabilityTracker отвечает, можно ли в данный момент подступиться
// к целевому вокселю. Все проверки идут через авторитетный менеджер мира:
// вторичных индексов блоков нет, поэтому сразу после удаления соседнего
// вокселя трекер видит новое состояние без регенерации.
type ReachabilityTracker struct {
	world *world.Manager
}

// NewReachabilityTracker создаёт трекер поверх менеджера мира
func NewReachabilityTracker(w *world.Manager) *ReachabilityTracker {
	return &ReachabilityTracker{world: w}
}

// HasAccessibleNeighbor проверяет шесть осевых соседей вокселя.
// Сосед считается доступным, если его чанк загружен и воксель не твердый.
// Незагруженный чанк означает «не можем подтвердить доступ сейчас»,
// а не «заблокировано навсегда» — такой воксель откладывается, не проваливается.
//
// Воксель в незагруженном чанке недоступен независимо от соседей:
// иначе отложенная цель возвращалась бы в план при каждой проверке
// и проход никогда бы не заканчивался.
func (rt *ReachabilityTracker) HasAccessibleNeighbor(v vec.Vec3) bool {
	if !rt.world.ChunkLoaded(rt.world.ChunkCoordOf(v)) {
		return false
	}
	for _, n := range v.Neighbors6() {
		if !rt.world.ChunkLoaded(rt.world.ChunkCoordOf(n)) {
			continue
		}
		if !rt.world.IsSolid(n) {
			return true
		}
	}
	return false
}

// RetryDeferred пересканирует отложенные воксели. Воксели, у которых
// появился доступный сосед, возвращаются первым списком (отсортированы
// сверху вниз), остальные — вторым.
func (rt *ReachabilityTracker) RetryDeferred(deferred []vec.Vec3) (recovered, remaining []vec.Vec3) {
	for _, v := range deferred {
		if rt.HasAccessibleNeighbor(v) {
			recovered = append(recovered, v)
		} else {
			remaining = append(remaining, v)
		}
	}
	SortTopDown(recovered)
	return recovered, remaining
}

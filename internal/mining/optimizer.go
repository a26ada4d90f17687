package mining

import (
	"sort"

	"github.com/annel0/turtle-miner/internal/vec"
)

// ColumnOptimizer упорядочивает набор целевых вокселей для эффективного
// обхода: воксели группируются в вертикальные колонны по (x,z), внутри
// колонны сортируются сверху вниз, а колонны обходятся жадным выбором
// ближайшей от текущей позиции актора.
//
// Сверху вниз — принципиально: актор опускается сквозь только что
// освобожденное пространство вместо повторной навигации, а вышележащие
// блоки не обрушиваются на рабочую зону.
type ColumnOptimizer struct{}

// column — производная группа вокселей с общими (x,z)
type column struct {
	key    vec.Vec2
	voxels []vec.Vec3
}

// Optimize возвращает упорядоченный план: перестановку входных вокселей.
// Результат детерминирован для одинакового входа и позиции актора;
// равные расстояния разрешаются порядком первого появления колонны.
// Пустой вход дает пустой план.
func (ColumnOptimizer) Optimize(targets []vec.Vec3, actorPos vec.Vec3) []vec.Vec3 {
	if len(targets) == 0 {
		return nil
	}

	// Группируем по (x,z), сохраняя порядок первого появления
	index := make(map[vec.Vec2]int)
	cols := make([]*column, 0)
	for _, t := range targets {
		key := t.XZ()
		i, exists := index[key]
		if !exists {
			i = len(cols)
			index[key] = i
			cols = append(cols, &column{key: key})
		}
		cols[i].voxels = append(cols[i].voxels, t)
	}

	// Внутри колонны — строго сверху вниз
	for _, c := range cols {
		sort.SliceStable(c.voxels, func(i, j int) bool {
			return c.voxels[i].Y > c.voxels[j].Y
		})
	}

	// Жадный ближайший сосед по горизонтали, начиная от актора
	out := make([]vec.Vec3, 0, len(targets))
	current := actorPos.XZ()
	used := make([]bool, len(cols))
	for range cols {
		best := -1
		bestDist := 0.0
		for i, c := range cols {
			if used[i] {
				continue
			}
			d := current.DistanceTo(c.key)
			if best < 0 || d < bestDist {
				best = i
				bestDist = d
			}
		}
		used[best] = true
		out = append(out, cols[best].voxels...)
		current = cols[best].key
	}

	return out
}

// SortTopDown сортирует воксели по убыванию высоты (стабильно).
// Используется при повторной вставке отложенных вокселей в план.
func SortTopDown(voxels []vec.Vec3) {
	sort.SliceStable(voxels, func(i, j int) bool {
		return voxels[i].Y > voxels[j].Y
	})
}

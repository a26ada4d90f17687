package mining

import (
	"testing"

	"github.com/annel0/turtle-miner/internal/vec"
)

func TestOptimizeIsPermutation(t *testing.T) {
	targets := []vec.Vec3{
		{X: 3, Y: 10, Z: 3},
		{X: 0, Y: 12, Z: 0},
		{X: 3, Y: 12, Z: 3},
		{X: 0, Y: 11, Z: 0},
		{X: 7, Y: 9, Z: 1},
	}

	plan := ColumnOptimizer{}.Optimize(targets, vec.Vec3{X: 1, Y: 14, Z: 1})
	if len(plan) != len(targets) {
		t.Fatalf("План должен быть перестановкой: ожидалось %d вокселей, получено %d", len(targets), len(plan))
	}

	want := make(map[vec.Vec3]int)
	for _, v := range targets {
		want[v]++
	}
	for _, v := range plan {
		want[v]--
	}
	for v, n := range want {
		if n != 0 {
			t.Errorf("Воксель %v появился в плане неверное число раз (дельта %d)", v, n)
		}
	}
}

func TestOptimizeColumnsTopDown(t *testing.T) {
	targets := []vec.Vec3{
		{X: 5, Y: 8, Z: 5},
		{X: 5, Y: 12, Z: 5},
		{X: 5, Y: 10, Z: 5},
		{X: 2, Y: 3, Z: 2},
		{X: 2, Y: 7, Z: 2},
	}

	plan := ColumnOptimizer{}.Optimize(targets, vec.Vec3{})

	lastY := make(map[vec.Vec2]int)
	for _, v := range plan {
		key := v.XZ()
		if prev, seen := lastY[key]; seen && v.Y > prev {
			t.Errorf("Колонна %v обходится не сверху вниз: y=%d после y=%d", key, v.Y, prev)
		}
		lastY[key] = v.Y
	}
}

func TestOptimizeColumnsContiguous(t *testing.T) {
	// Колонна, однажды начатая, добивается целиком до перехода к следующей
	targets := []vec.Vec3{
		{X: 0, Y: 10, Z: 0},
		{X: 4, Y: 10, Z: 0},
		{X: 0, Y: 9, Z: 0},
		{X: 4, Y: 9, Z: 0},
	}

	plan := ColumnOptimizer{}.Optimize(targets, vec.Vec3{X: 0, Y: 12, Z: 0})

	finished := make(map[vec.Vec2]bool)
	var cur vec.Vec2
	started := false
	for _, v := range plan {
		key := v.XZ()
		if started && !key.Equals(cur) {
			finished[cur] = true
			cur = key
		} else if !started {
			cur = key
			started = true
		}
		if finished[key] {
			t.Fatalf("Колонна %v возобновлена после перехода к другой колонне", key)
		}
	}
}

func TestOptimizeGreedyNearestColumn(t *testing.T) {
	actor := vec.Vec3{X: 0, Y: 20, Z: 0}
	targets := []vec.Vec3{
		{X: 10, Y: 10, Z: 0}, // Дальняя колонна указана первой
		{X: 1, Y: 10, Z: 0},
		{X: 5, Y: 10, Z: 0},
	}

	plan := ColumnOptimizer{}.Optimize(targets, actor)

	wantOrder := []int{1, 5, 10}
	for i, wantX := range wantOrder {
		if plan[i].X != wantX {
			t.Fatalf("Жадный порядок колонн нарушен: позиция %d ожидала x=%d, получено %v", i, wantX, plan[i])
		}
	}
}

func TestOptimizeDeterministicWithTies(t *testing.T) {
	// Две колонны на равном расстоянии от актора: побеждает порядок
	// первого появления во входе
	actor := vec.Vec3{X: 0, Y: 20, Z: 0}
	targets := []vec.Vec3{
		{X: 3, Y: 10, Z: 0},
		{X: -3, Y: 10, Z: 0},
	}

	first := ColumnOptimizer{}.Optimize(targets, actor)
	for i := 0; i < 10; i++ {
		again := ColumnOptimizer{}.Optimize(targets, actor)
		for j := range first {
			if !first[j].Equals(again[j]) {
				t.Fatalf("План недетерминирован: прогон %d разошелся на позиции %d", i, j)
			}
		}
	}
	if first[0].X != 3 {
		t.Errorf("При равных расстояниях ожидалась колонна первого появления (x=3), получено %v", first[0])
	}
}

func TestOptimizeEmptyInput(t *testing.T) {
	if plan := (ColumnOptimizer{}).Optimize(nil, vec.Vec3{}); len(plan) != 0 {
		t.Errorf("Пустой вход должен давать пустой план, получено %d вокселей", len(plan))
	}
}

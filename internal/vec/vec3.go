package vec

// Vec3 представляет трехмерный воксель с целочисленными координатами.
// Y — вертикальная ось (высота), X/Z — горизонтальная плоскость.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// XZ преобразует Vec3 в Vec2, игнорируя высоту
func (v Vec3) XZ() Vec2 {
	return Vec2{
		X: v.X,
		Z: v.Z,
	}
}

// Round округляет плавающий вектор до целочисленного вокселя
func (v Vec3Float) Round() Vec3 {
	return Vec3{
		X: roundInt(v.X),
		Y: roundInt(v.Y),
		Z: roundInt(v.Z),
	}
}

func roundInt(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает другой вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// ManhattanTo возвращает L1-расстояние до другого вокселя
func (v Vec3) ManhattanTo(other Vec3) int {
	return absInt(v.X-other.X) + absInt(v.Y-other.Y) + absInt(v.Z-other.Z)
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// Up возвращает воксель непосредственно над текущим
func (v Vec3) Up() Vec3 {
	return Vec3{X: v.X, Y: v.Y + 1, Z: v.Z}
}

// Down возвращает воксель непосредственно под текущим
func (v Vec3) Down() Vec3 {
	return Vec3{X: v.X, Y: v.Y - 1, Z: v.Z}
}

// axisOffsets перечисляет шесть осевых смещений (N, S, E, W, Up, Down)
var axisOffsets = [6]Vec3{
	{X: 1}, {X: -1},
	{Z: 1}, {Z: -1},
	{Y: 1}, {Y: -1},
}

// Neighbors6 возвращает шесть осевых соседей вокселя
func (v Vec3) Neighbors6() [6]Vec3 {
	var out [6]Vec3
	for i, off := range axisOffsets {
		out[i] = v.Add(off)
	}
	return out
}

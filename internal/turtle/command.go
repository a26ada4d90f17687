package turtle

import (
	"fmt"

	"github.com/annel0/turtle-miner/internal/vec"
)

// Direction — сторона света, в которую смотрит туртл
type Direction int

const (
	North Direction = iota // -Z
	East                   // +X
	South                  // +Z
	West                   // -X
)

var directionNames = [...]string{"north", "east", "south", "west"}

// String возвращает проводное имя направления
func (d Direction) String() string {
	if d < North || d > West {
		return "unknown"
	}
	return directionNames[d]
}

// ParseDirection разбирает проводное имя направления
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return North, fmt.Errorf("неизвестное направление: %q", s)
}

// Vec возвращает единичный вектор направления
func (d Direction) Vec() vec.Vec3 {
	switch d {
	case North:
		return vec.Vec3{Z: -1}
	case East:
		return vec.Vec3{X: 1}
	case South:
		return vec.Vec3{Z: 1}
	case West:
		return vec.Vec3{X: -1}
	}
	return vec.Vec3{}
}

// Left возвращает направление после поворота налево
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// Right возвращает направление после поворота направо
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// HorizontalDirection возвращает направление для горизонтального единичного
// смещения from→to. ok=false для вертикальных, нулевых или диагональных смещений.
func HorizontalDirection(from, to vec.Vec3) (Direction, bool) {
	delta := to.Sub(from)
	if delta.Y != 0 {
		return North, false
	}
	for d := North; d <= West; d++ {
		if d.Vec().Equals(delta) {
			return d, true
		}
	}
	return North, false
}

// CommandType — тип команды туртла (проводные имена совпадают с turtle API)
type CommandType string

const (
	CmdForward   CommandType = "forward"
	CmdBack      CommandType = "back"
	CmdUp        CommandType = "up"
	CmdDown      CommandType = "down"
	CmdTurnLeft  CommandType = "turnLeft"
	CmdTurnRight CommandType = "turnRight"
	CmdDig       CommandType = "dig"
	CmdDigUp     CommandType = "digUp"
	CmdDigDown   CommandType = "digDown"
)

// Command — одна команда для удаленного туртла
type Command struct {
	Type CommandType `json:"action"`
}

// TurnsTo возвращает последовательность команд поворота из from в to.
// Максимум два поворота; разворот делается двумя turnRight.
func TurnsTo(from, to Direction) []Command {
	switch {
	case from == to:
		return nil
	case from.Right() == to:
		return []Command{{Type: CmdTurnRight}}
	case from.Left() == to:
		return []Command{{Type: CmdTurnLeft}}
	default:
		return []Command{{Type: CmdTurnRight}, {Type: CmdTurnRight}}
	}
}

// Status — последний известный статус туртла (формат сервера команд)
type Status struct {
	Label               string   `json:"label"`
	Position            Position `json:"position"`
	Direction           string   `json:"direction"`
	IsBusy              bool     `json:"isBusy"`
	FuelLevel           int      `json:"fuelLevel"`
	MaxFuel             int      `json:"maxFuel"`
	InventorySlotsUsed  int      `json:"inventorySlotsUsed"`
	InventorySlotsTotal int      `json:"inventorySlotsTotal"`
}

// Position — позиция в статусе туртла.
// Сервер статуса отдает плавающие координаты; группировка по вокселям
// всегда идет через округление.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Voxel возвращает воксель, занимаемый туртлом
func (p Position) Voxel() vec.Vec3 {
	return vec.Vec3Float{X: p.X, Y: p.Y, Z: p.Z}.Round()
}

package turtle

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
)

// SimChannel — симулируемый туртл, применяющий команды к менеджеру мира.
// Используется в sim-режиме сервера и в тестах оркестратора.
// Семантика совпадает с удаленным туртлом: одна команда в полете,
// неудачное перемещение (блок на пути) не меняет позицию и не является ошибкой.
type SimChannel struct {
	mu      sync.Mutex
	world   *world.Manager
	pos     vec.Vec3
	facing  Direction
	busy    bool
	latency time.Duration
	fuel    int

	history []Command // Выполненные команды (для тестов)
}

// NewSimChannel создаёт симулируемый туртл в указанной позиции
func NewSimChannel(w *world.Manager, pos vec.Vec3, facing Direction) *SimChannel {
	return &SimChannel{
		world:   w,
		pos:     pos,
		facing:  facing,
		latency: time.Millisecond,
		fuel:    100000,
	}
}

// SetLatency задает искусственную задержку выполнения команды
func (sc *SimChannel) SetLatency(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.latency = d
}

// Enqueue принимает одну команду и асинхронно выполняет её
func (sc *SimChannel) Enqueue(ctx context.Context, cmd Command) error {
	sc.mu.Lock()
	if sc.busy {
		sc.mu.Unlock()
		return ErrBusy
	}
	sc.busy = true
	latency := sc.latency
	sc.mu.Unlock()

	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		sc.apply(cmd)

		sc.mu.Lock()
		sc.history = append(sc.history, cmd)
		sc.busy = false
		sc.mu.Unlock()
	}()
	return nil
}

// apply выполняет команду против мира
func (sc *SimChannel) apply(cmd Command) {
	sc.mu.Lock()
	pos := sc.pos
	facing := sc.facing
	sc.mu.Unlock()

	switch cmd.Type {
	case CmdForward:
		sc.tryMove(pos.Add(facing.Vec()))
	case CmdBack:
		sc.tryMove(pos.Sub(facing.Vec()))
	case CmdUp:
		sc.tryMove(pos.Up())
	case CmdDown:
		sc.tryMove(pos.Down())
	case CmdTurnLeft:
		sc.mu.Lock()
		sc.facing = facing.Left()
		sc.mu.Unlock()
	case CmdTurnRight:
		sc.mu.Lock()
		sc.facing = facing.Right()
		sc.mu.Unlock()
	case CmdDig:
		sc.tryDig(pos.Add(facing.Vec()))
	case CmdDigUp:
		sc.tryDig(pos.Up())
	case CmdDigDown:
		sc.tryDig(pos.Down())
	}
}

// tryMove перемещает туртла, если целевой воксель свободен
func (sc *SimChannel) tryMove(target vec.Vec3) {
	if sc.world.IsSolid(target) {
		return // Заблокировано — позиция не меняется
	}

	sc.mu.Lock()
	sc.pos = target
	sc.fuel--
	sc.mu.Unlock()
}

// tryDig убирает копаемый воксель. Удаление пустого вокселя безвредно.
func (sc *SimChannel) tryDig(target vec.Vec3) {
	id, loaded := sc.world.BlockAt(target)
	if !loaded || !block.CategoryOf(id).Diggable() {
		return
	}
	sc.world.RemoveVoxel(target)
}

// IsBusy сообщает, выполняется ли команда
func (sc *SimChannel) IsBusy() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.busy
}

// CurrentPosition — текущая позиция туртла
func (sc *SimChannel) CurrentPosition() Position {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return Position{X: float64(sc.pos.X), Y: float64(sc.pos.Y), Z: float64(sc.pos.Z)}
}

// CurrentFacing — текущее направление
func (sc *SimChannel) CurrentFacing() Direction {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.facing
}

// FuelLevel — остаток топлива симулируемого туртла
func (sc *SimChannel) FuelLevel() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.fuel
}

// History возвращает копию списка выполненных команд
func (sc *SimChannel) History() []Command {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]Command, len(sc.history))
	copy(out, sc.history)
	return out
}

// LastStatus собирает Status в формате сервера команд (для REST API)
func (sc *SimChannel) LastStatus() (Status, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return Status{
		Label:     "sim",
		Position:  Position{X: float64(sc.pos.X), Y: float64(sc.pos.Y), Z: float64(sc.pos.Z)},
		Direction: sc.facing.String(),
		IsBusy:    sc.busy,
		FuelLevel: sc.fuel,
		MaxFuel:   100000,
	}, true
}

package mining

import (
	"context"
	"fmt"

	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/turtle"
	"github.com/annel0/turtle-miner/internal/vec"
	"github.com/annel0/turtle-miner/internal/world"
	"github.com/annel0/turtle-miner/internal/world/block"
)

// driver переводит навигационные шаги в сериализованные команды туртла.
// Каждая команда проходит через turtle.Dispatch: дождаться готовности,
// поставить, дождаться подтверждения. Второй команды в полете не бывает.
type driver struct {
	world   *world.Manager
	channel turtle.CommandChannel
	opts    turtle.DispatchOptions
	onDig   func(pos vec.Vec3) // Вызывается после каждого подтвержденного прокопа
}

// pos возвращает воксель, занимаемый актором по последнему статусу
func (d *driver) pos() vec.Vec3 {
	return d.channel.CurrentPosition().Voxel()
}

// send выполняет одну команду с полным циклом подтверждения
func (d *driver) send(ctx context.Context, cmdType turtle.CommandType) error {
	return turtle.Dispatch(ctx, d.channel, turtle.Command{Type: cmdType}, d.opts)
}

// face доворачивает актора до нужного направления
func (d *driver) face(ctx context.Context, dir turtle.Direction) error {
	for _, cmd := range turtle.TurnsTo(d.channel.CurrentFacing(), dir) {
		if err := turtle.Dispatch(ctx, d.channel, cmd, d.opts); err != nil {
			return err
		}
	}
	return nil
}

// digAt убирает воксель, смежный с актором: выбирает dig/digUp/digDown
// (с доворотом для горизонтали), ждет подтверждения и фиксирует удаление
// в авторитетном мире. Идемпотентна: прокоп уже пустого вокселя безвреден.
func (d *driver) digAt(ctx context.Context, target vec.Vec3) error {
	if id, loaded := d.world.BlockAt(target); loaded && block.CategoryOf(id) == block.CategoryUnbreakable {
		return fmt.Errorf("воксель (%d,%d,%d) неразрушим", target.X, target.Y, target.Z)
	}

	actor := d.pos()
	delta := target.Sub(actor)

	var cmdType turtle.CommandType
	switch {
	case delta.Equals(vec.Vec3{Y: 1}):
		cmdType = turtle.CmdDigUp
	case delta.Equals(vec.Vec3{Y: -1}):
		cmdType = turtle.CmdDigDown
	default:
		dir, ok := turtle.HorizontalDirection(actor, target)
		if !ok {
			return fmt.Errorf("воксель (%d,%d,%d) не смежен с актором (%d,%d,%d)",
				target.X, target.Y, target.Z, actor.X, actor.Y, actor.Z)
		}
		if err := d.face(ctx, dir); err != nil {
			return err
		}
		cmdType = turtle.CmdDig
	}

	if err := d.send(ctx, cmdType); err != nil {
		return err
	}

	// Мутация авторитетного мира после подтверждения команды
	d.world.RemoveVoxel(target)
	if d.onDig != nil {
		d.onDig(target)
	}
	return nil
}

// step делает один шаг в смежный воксель. Если воксель занят твердым
// блоком и разрешена авто-раскопка, блок прокапывается перед шагом.
func (d *driver) step(ctx context.Context, to vec.Vec3, autoExcavate bool) error {
	actor := d.pos()
	delta := to.Sub(actor)

	if d.world.IsSolid(to) {
		if !autoExcavate {
			return fmt.Errorf("шаг в (%d,%d,%d) заблокирован твердым блоком", to.X, to.Y, to.Z)
		}
		if err := d.digAt(ctx, to); err != nil {
			return err
		}
	}

	var cmdType turtle.CommandType
	switch {
	case delta.Equals(vec.Vec3{Y: 1}):
		cmdType = turtle.CmdUp
	case delta.Equals(vec.Vec3{Y: -1}):
		cmdType = turtle.CmdDown
	default:
		dir, ok := turtle.HorizontalDirection(actor, to)
		if !ok {
			return fmt.Errorf("вейпоинт (%d,%d,%d) не смежен с актором (%d,%d,%d)",
				to.X, to.Y, to.Z, actor.X, actor.Y, actor.Z)
		}
		if err := d.face(ctx, dir); err != nil {
			return err
		}
		cmdType = turtle.CmdForward
	}

	if err := d.send(ctx, cmdType); err != nil {
		return err
	}

	if !d.pos().Equals(to) {
		return fmt.Errorf("актор не достиг вейпоинта (%d,%d,%d), фактически (%d,%d,%d)",
			to.X, to.Y, to.Z, d.pos().X, d.pos().Y, d.pos().Z)
	}
	return nil
}

// moveAlong проводит актора по списку вейпоинтов
func (d *driver) moveAlong(ctx context.Context, waypoints []vec.Vec3, autoExcavate bool) error {
	for _, wp := range waypoints {
		if err := d.step(ctx, wp, autoExcavate); err != nil {
			return err
		}
	}
	return nil
}

// descendTo опускает актора строго вниз до высоты targetY,
// прокапывая блок под собой перед каждым шагом. Каждое удаление
// идемпотентно: прокоп пустого вокселя просто подтверждается без эффекта.
func (d *driver) descendTo(ctx context.Context, targetY int) error {
	for d.pos().Y > targetY {
		below := d.pos().Down()
		if err := d.digAt(ctx, below); err != nil {
			return err
		}
		if err := d.step(ctx, below, false); err != nil {
			return err
		}
	}
	logging.Debug("Актор опустился до y=%d", d.pos().Y)
	return nil
}

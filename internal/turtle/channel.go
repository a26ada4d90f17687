package turtle

import (
	"context"
	"fmt"
	"time"
)

// ErrBusy возвращается при попытке поставить команду, пока предыдущая не подтверждена
var ErrBusy = fmt.Errorf("туртл занят: команда уже в полете")

// CommandChannel — асинхронный канал команд к одному удаленному туртлу.
// Канал принимает не более одной команды в полете; вызывающий обязан
// дождаться сброса флага занятости перед следующей командой.
type CommandChannel interface {
	// Enqueue ставит одну команду. Возвращает ErrBusy, если канал занят.
	Enqueue(ctx context.Context, cmd Command) error
	// IsBusy сообщает, выполняет ли туртл команду
	IsBusy() bool
	// CurrentPosition — последняя известная позиция туртла
	CurrentPosition() Position
	// CurrentFacing — последнее известное направление взгляда
	CurrentFacing() Direction
}

// DispatchOptions управляет ожиданием подтверждения команды
type DispatchOptions struct {
	PollInterval time.Duration // Интервал опроса флага занятости
	AckTimeout   time.Duration // 0 = ждать неограниченно
}

// Dispatch выполняет полный цикл одной команды: дождаться освобождения
// канала, поставить команду, дождаться подтверждения выполнения.
// Это единственная точка, где оркестратор взаимодействует с туртлом;
// сериализация «одна команда в полете» обеспечивается здесь.
func Dispatch(ctx context.Context, ch CommandChannel, cmd Command, opts DispatchOptions) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}

	deadline := time.Time{}
	if opts.AckTimeout > 0 {
		deadline = time.Now().Add(opts.AckTimeout)
	}

	// Ждем освобождения канала от предыдущей команды
	if err := waitIdle(ctx, ch, opts.PollInterval, deadline); err != nil {
		return fmt.Errorf("ожидание готовности туртла: %w", err)
	}

	if err := ch.Enqueue(ctx, cmd); err != nil {
		return fmt.Errorf("постановка команды %q: %w", cmd.Type, err)
	}

	// Ждем подтверждения выполнения
	if err := waitIdle(ctx, ch, opts.PollInterval, deadline); err != nil {
		return fmt.Errorf("ожидание подтверждения %q: %w", cmd.Type, err)
	}
	return nil
}

// waitIdle блокируется, пока туртл не освободится.
// Пустой deadline означает неограниченное ожидание (отменяемое контекстом).
func waitIdle(ctx context.Context, ch CommandChannel, poll time.Duration, deadline time.Time) error {
	for ch.IsBusy() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("туртл не подтвердил выполнение за отведенное время")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	return nil
}

package mining

import (
	"context"
	"time"
)

// RunState — состояние прогона
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateCancelled RunState = "cancelled"
)

// Report — итог одного горнодобывающего прогона.
// Ни один отказ не скрывается: каждый целевой воксель учтен ровно
// в одном из счетчиков.
type Report struct {
	RunID      string    `json:"run_id"`
	State      RunState  `json:"state"`
	Total      int       `json:"total"`     // Всего целевых вокселей
	Processed  int       `json:"processed"` // Успешно выкопано
	Skipped    int       `json:"skipped"`   // Уже были пустыми (например, сняты шахтой)
	Failed     int       `json:"failed"`    // Навигация/досягаемость не удались
	Passes     int       `json:"passes"`    // Сколько проходов выполнено
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Remaining возвращает число вокселей, не получивших исхода
// (ненулевое только у прерванного прогона).
func (r *Report) Remaining() int {
	return r.Total - r.Processed - r.Skipped - r.Failed
}

// RunRecorder сохраняет отчеты прогонов.
// Реализации живут в пакете storage (память, Redis).
type RunRecorder interface {
	SaveReport(ctx context.Context, report *Report) error
}

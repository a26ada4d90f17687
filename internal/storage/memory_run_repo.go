package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/turtle-miner/internal/mining"
)

// defaultListLimit ограничивает выборку ListReports при limit <= 0
const defaultListLimit = 100

// MemoryRunRepo реализует RunRepo в памяти.
// Используется как fallback, когда Redis недоступен,
// или для CI/локальной разработки без внешних сервисов.
// ВНИМАНИЕ: отчеты теряются при перезапуске сервиса!
type MemoryRunRepo struct {
	mu      sync.RWMutex
	reports map[string]mining.Report
	order   []string // RunID в порядке сохранения
}

// NewMemoryRunRepo создает новый репозиторий отчетов в памяти
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{
		reports: make(map[string]mining.Report),
	}
}

// SaveReport сохраняет отчет прогона в памяти
func (r *MemoryRunRepo) SaveReport(_ context.Context, report *mining.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("отчет без идентификатора прогона")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.RunID]; !exists {
		r.order = append(r.order, report.RunID)
	}
	r.reports[report.RunID] = *report
	return nil
}

// GetReport загружает отчет по RunID
func (r *MemoryRunRepo) GetReport(_ context.Context, runID string) (*mining.Report, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, exists := r.reports[runID]
	if !exists {
		return nil, false, nil
	}
	return &rep, true, nil
}

// ListReports возвращает последние отчеты, от новых к старым
func (r *MemoryRunRepo) ListReports(_ context.Context, limit int) ([]mining.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mining.Report, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.reports[r.order[i]])
	}
	return out, nil
}

// Close — no-op для репозитория в памяти
func (r *MemoryRunRepo) Close() error {
	return nil
}

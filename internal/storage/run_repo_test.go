package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/annel0/turtle-miner/internal/mining"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunRepoSaveAndGet(t *testing.T) {
	repo := NewMemoryRunRepo()
	ctx := context.Background()

	rep := &mining.Report{
		RunID:     "run-1",
		State:     mining.StateCompleted,
		Total:     10,
		Processed: 8,
		Skipped:   1,
		Failed:    1,
		Passes:    2,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveReport(ctx, rep))

	got, ok, err := repo.GetReport(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rep.Processed, got.Processed)
	assert.Equal(t, mining.StateCompleted, got.State)

	// Возвращается копия: мутация результата не трогает хранилище
	got.Processed = 0
	again, _, _ := repo.GetReport(ctx, "run-1")
	assert.Equal(t, 8, again.Processed)

	_, ok, err = repo.GetReport(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRunRepoValidation(t *testing.T) {
	repo := NewMemoryRunRepo()
	assert.Error(t, repo.SaveReport(context.Background(), nil))
	assert.Error(t, repo.SaveReport(context.Background(), &mining.Report{}))
}

func TestMemoryRunRepoListNewestFirst(t *testing.T) {
	repo := NewMemoryRunRepo()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.SaveReport(ctx, &mining.Report{
			RunID: fmt.Sprintf("run-%d", i),
			State: mining.StateCompleted,
		}))
	}

	reports, err := repo.ListReports(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "run-5", reports[0].RunID)
	assert.Equal(t, "run-4", reports[1].RunID)
	assert.Equal(t, "run-3", reports[2].RunID)

	all, err := repo.ListReports(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryRunRepoOverwrite(t *testing.T) {
	repo := NewMemoryRunRepo()
	ctx := context.Background()

	require.NoError(t, repo.SaveReport(ctx, &mining.Report{RunID: "run-1", Processed: 1}))
	require.NoError(t, repo.SaveReport(ctx, &mining.Report{RunID: "run-1", Processed: 2}))

	reports, err := repo.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1, "перезапись не должна плодить записи в индексе")
	assert.Equal(t, 2, reports[0].Processed)
}

package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralis-labs/kbindex/internal/adapters/driven/storage/memory"
	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
)

// countingKB counts integrity checks; all other operations are no-ops.
type countingKB struct {
	integrityCalls atomic.Int64
	integrityErr   error
}

func (k *countingKB) Ingest(_ context.Context, _ string, _ domain.DocumentMetadata, _ driving.IngestOptions) (*driving.IngestResult, error) {
	return &driving.IngestResult{}, nil
}

func (k *countingKB) Search(_ context.Context, _ string, _ domain.SearchOptions) (*domain.SearchResponse, error) {
	return &domain.SearchResponse{}, nil
}

func (k *countingKB) SubmitFeedback(_ context.Context, _, _ string, _ []string, _ int, _ string) error {
	return nil
}

func (k *countingKB) IntegrityReport(_ context.Context) (*domain.IntegrityReport, error) {
	k.integrityCalls.Add(1)
	if k.integrityErr != nil {
		return nil, k.integrityErr
	}
	return &domain.IntegrityReport{Consistent: true}, nil
}

func (k *countingKB) TriggerRebuild(_ context.Context) error { return nil }

func (k *countingKB) FreshnessReport(_ context.Context) (*domain.FreshnessReport, error) {
	return &domain.FreshnessReport{}, nil
}

func (k *countingKB) Close() error { return nil }

func TestScheduler_EnsureTaskCreatesIntegrityTask(t *testing.T) {
	store := memory.NewSchedulerStore()
	s := NewScheduler(domain.SchedulerConfig{Enabled: true, IntegrityInterval: time.Hour}, store, &countingKB{})

	require.NoError(t, s.ensureTask(context.Background()))

	task, err := store.GetTask(context.Background(), domain.TaskIDIntegrityCheck)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, task.Enabled)
	assert.Equal(t, time.Hour, task.Interval)
	assert.False(t, task.NextRun.IsZero())
}

func TestScheduler_EnsureTaskUpdatesInterval(t *testing.T) {
	store := memory.NewSchedulerStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Name:     "Integrity Check",
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(time.Hour),
	}))

	s := NewScheduler(domain.SchedulerConfig{Enabled: true, IntegrityInterval: 30 * time.Minute}, store, &countingKB{})
	require.NoError(t, s.ensureTask(ctx))

	task, err := store.GetTask(ctx, domain.TaskIDIntegrityCheck)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, task.Interval)
}

func TestScheduler_RunsDueTask(t *testing.T) {
	store := memory.NewSchedulerStore()
	kb := &countingKB{}
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Name:     "Integrity Check",
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(-time.Minute),
	}))

	s := NewScheduler(domain.SchedulerConfig{Enabled: true, IntegrityInterval: time.Hour}, store, kb)
	s.checkAndRunDueTasks(ctx)

	assert.Equal(t, int64(1), kb.integrityCalls.Load())

	task, err := store.GetTask(ctx, domain.TaskIDIntegrityCheck)
	require.NoError(t, err)
	assert.Equal(t, "ok", task.LastStatus)
	assert.False(t, task.LastRun.IsZero())
	assert.True(t, task.NextRun.After(time.Now()))
}

func TestScheduler_SkipsDisabledAndNotDueTasks(t *testing.T) {
	store := memory.NewSchedulerStore()
	kb := &countingKB{}
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Interval: time.Hour,
		Enabled:  false,
		NextRun:  time.Now().Add(-time.Minute),
	}))

	s := NewScheduler(domain.SchedulerConfig{Enabled: false, IntegrityInterval: time.Hour}, store, kb)
	s.checkAndRunDueTasks(ctx)
	assert.Zero(t, kb.integrityCalls.Load())

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(time.Hour),
	}))
	s.checkAndRunDueTasks(ctx)
	assert.Zero(t, kb.integrityCalls.Load())
}

func TestScheduler_RecordsTaskFailure(t *testing.T) {
	store := memory.NewSchedulerStore()
	kb := &countingKB{integrityErr: domain.ErrIndexCorruption}
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(-time.Minute),
	}))

	s := NewScheduler(domain.SchedulerConfig{Enabled: true, IntegrityInterval: time.Hour}, store, kb)
	s.checkAndRunDueTasks(ctx)

	task, err := store.GetTask(ctx, domain.TaskIDIntegrityCheck)
	require.NoError(t, err)
	assert.Equal(t, "error", task.LastStatus)
	assert.NotEmpty(t, task.LastError)
	// Failed tasks are rescheduled, not retried in a tight loop.
	assert.True(t, task.NextRun.After(time.Now()))
}

func TestScheduler_StartRunsDueTaskAndStops(t *testing.T) {
	store := memory.NewSchedulerStore()
	kb := &countingKB{}
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDIntegrityCheck,
		Name:     "Integrity Check",
		Interval: time.Hour,
		Enabled:  true,
		NextRun:  time.Now().Add(-time.Minute),
	}))

	s := NewScheduler(domain.SchedulerConfig{Enabled: true, IntegrityInterval: time.Hour}, store, kb)

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return kb.integrityCalls.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, <-done)
}

package repository_test

import (
	"context"
	"testing"

	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	med := &repository.Medication{
		BoxID: 2, MedicationID: 7, Name: "Aspirin", TotalPills: 10, PillsPerIntake: 1,
		DosesPerDay: 2, ScheduleTime1: "08:00", ScheduleTime2: testutil.PtrString("20:00"),
	}
	require.NoError(t, store.Insert(ctx, med))

	err := store.Insert(ctx, &repository.Medication{BoxID: 2, Name: "Other"})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	remaining, err := store.Decrement(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	remaining, err = store.Decrement(ctx, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = store.Decrement(ctx, 1, 1)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Caller mutations must not leak into the store
	*med.ScheduleTime2 = "23:59"
	got, err := store.GetByBox(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "20:00", *got.ScheduleTime2)
	assert.Equal(t, "Aspirin", got.Name)

	deleted, err := store.Delete(ctx, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, 2)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStore_ListAllOrdered(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	for _, box := range []int{3, 1, 2} {
		require.NoError(t, store.Insert(ctx, &repository.Medication{BoxID: box, Name: "x", DosesPerDay: 1, ScheduleTime1: "08:00"}))
	}

	meds, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, meds, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{meds[0].BoxID, meds[1].BoxID, meds[2].BoxID})
}

func TestMemoryStore_UpdateUnknownBox(t *testing.T) {
	err := repository.NewMemoryStore().Update(context.Background(), &repository.Medication{BoxID: 1})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockScheduler_ScanCountsAlerts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, aspirin(1, 0)))
	require.NoError(t, store.Insert(ctx, aspirin(2, 4)))
	require.NoError(t, store.Insert(ctx, aspirin(3, 30)))

	sched := NewStockScheduler(svc, time.Minute, logger.Nop())
	counts, err := sched.scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, counts[AlertEmpty])
	assert.Equal(t, 1, counts[AlertCritical])
	assert.Equal(t, 0, counts[AlertWarning])
}

func TestStockScheduler_StartStop(t *testing.T) {
	svc, _, _ := newTestService(t)

	sched := NewStockScheduler(svc, 10*time.Millisecond, logger.Nop())
	sched.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sched.Stop()

	var disabled *StockScheduler
	disabled.Stop()
}

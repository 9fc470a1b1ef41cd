package diskmanager

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
	eventerrors "github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/observability/metrics"
)

func fixedUsage(percent float64) UsageFunc {
	return func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{UsedPercent: percent, Free: 1 << 20}, nil
	}
}

func TestGuardDisabled(t *testing.T) {
	t.Parallel()
	g := NewGuard(t.TempDir(), 0, nil)
	g.usage = fixedUsage(99.9)
	assert.False(t, g.Enabled())
	assert.NoError(t, g.Check(context.Background()))

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Check(context.Background()))
}

func TestGuardAllowsBelowLimit(t *testing.T) {
	t.Parallel()
	m, err := metrics.NewDiskManagerMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	g := NewGuard(t.TempDir(), 90, m)
	g.usage = fixedUsage(42)
	assert.NoError(t, g.Check(context.Background()))
}

func TestGuardRefusesAboveLimit(t *testing.T) {
	t.Parallel()
	g := NewGuard(t.TempDir(), 90, nil)
	g.usage = fixedUsage(95)

	err := g.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrSinkWrite)
	assert.True(t, eventerrors.IsCategory(err, eventerrors.CategoryDiskUsage))
	assert.Contains(t, err.Error(), "95.0%")
}

func TestGuardFailsOpenOnQueryError(t *testing.T) {
	t.Parallel()
	g := NewGuard(t.TempDir(), 90, nil)
	g.usage = func(context.Context, string) (*disk.UsageStat, error) {
		return nil, errors.New("statfs: no such device")
	}
	assert.NoError(t, g.Check(context.Background()))
}

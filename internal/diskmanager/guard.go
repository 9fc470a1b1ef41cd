// Package diskmanager keeps recordings from filling the output filesystem.
package diskmanager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
	"github.com/tphakala/eventrec/internal/observability/metrics"
)

// UsageFunc reports filesystem usage for a path.
type UsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// Guard refuses writes once the output filesystem passes a usage limit.
type Guard struct {
	dir        string
	maxPercent float64
	usage      UsageFunc
	metrics    *metrics.DiskManagerMetrics
	logger     *slog.Logger
}

// NewGuard returns a guard for dir. A maxPercent of zero disables the check.
// m may be nil.
func NewGuard(dir string, maxPercent float64, m *metrics.DiskManagerMetrics) *Guard {
	return &Guard{
		dir:        dir,
		maxPercent: maxPercent,
		usage:      disk.UsageWithContext,
		metrics:    m,
		logger:     logging.ForService("diskmanager").With("dir", dir),
	}
}

// Enabled reports whether the guard checks anything.
func (g *Guard) Enabled() bool {
	return g != nil && g.maxPercent > 0
}

// Check returns an error wrapping audiocore.ErrSinkWrite when the output
// filesystem is above the limit. A failed usage query is logged and the
// write is allowed.
func (g *Guard) Check(ctx context.Context) error {
	if !g.Enabled() {
		return nil
	}

	stat, err := g.usage(ctx, g.dir)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordCheckError()
		}
		g.logger.Warn("disk usage check failed, allowing write", "error", err)
		return nil
	}

	if g.metrics != nil {
		g.metrics.UpdateDiskUsage(stat.UsedPercent, stat.Free)
	}

	if stat.UsedPercent < g.maxPercent {
		return nil
	}

	if g.metrics != nil {
		g.metrics.RecordRefusal()
	}
	return errors.New(fmt.Errorf("%w: disk usage %.1f%% exceeds limit %.1f%%",
		audiocore.ErrSinkWrite, stat.UsedPercent, g.maxPercent)).
		Component("diskmanager").
		Category(errors.CategoryDiskUsage).
		Context("used_percent", stat.UsedPercent).
		Context("free_bytes", stat.Free).
		Context("limit_percent", g.maxPercent).
		Build()
}

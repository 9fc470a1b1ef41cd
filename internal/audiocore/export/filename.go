package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/eventrec/internal/errors"
)

const (
	// TimestampLayout renders the flush time as YYYY-MM-DD_HH-MM-SS.
	TimestampLayout = "2006-01-02_15-04-05"

	// Extension of recordings written by WAVSink.
	Extension = ".wav"

	// maxCollisionSuffix bounds the numeric suffix search.
	maxCollisionSuffix = 9999
)

// FileName returns <prefix><YYYY-MM-DD_HH-MM-SS>.wav for t at second
// resolution in t's location.
func FileName(prefix string, t time.Time) string {
	return prefix + t.Format(TimestampLayout) + Extension
}

// collisionName returns the n-th alternative name: <prefix><ts>_<n>.wav.
func collisionName(prefix string, t time.Time, n int) string {
	return prefix + t.Format(TimestampLayout) + "_" + strconv.Itoa(n) + Extension
}

// ParseFileName extracts the timestamp and collision counter from a
// recording file name produced with prefix. The counter is 0 for the
// unsuffixed name.
func ParseFileName(name, prefix string, loc *time.Location) (time.Time, int, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, Extension) {
		return time.Time{}, 0, errors.Newf("%q is not a recording named with prefix %q", base, prefix).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	stem := strings.TrimSuffix(strings.TrimPrefix(base, prefix), Extension)
	counter := 0
	if len(stem) > len(TimestampLayout) {
		suffix := stem[len(TimestampLayout):]
		if !strings.HasPrefix(suffix, "_") {
			return time.Time{}, 0, errors.Newf("unexpected suffix %q in %q", suffix, base).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
		n, err := strconv.Atoi(suffix[1:])
		if err != nil || n <= 0 {
			return time.Time{}, 0, errors.Newf("invalid collision counter %q in %q", suffix[1:], base).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
		counter = n
		stem = stem[:len(TimestampLayout)]
	}

	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimestampLayout, stem, loc)
	if err != nil {
		return time.Time{}, 0, errors.New(fmt.Errorf("parse timestamp of %q: %w", base, err)).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}
	return ts, counter, nil
}

// createUnique creates a new recording file in dir named after prefix and
// t. When the name is taken, a numeric suffix _1, _2, ... is appended. The
// file is created with O_EXCL so concurrent writers never share a file.
func createUnique(dir, prefix string, t time.Time) (*os.File, string, error) {
	name := FileName(prefix, t)
	for n := 0; n <= maxCollisionSuffix; n++ {
		if n > 0 {
			name = collisionName(prefix, t, n)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", err
		}
	}

	return nil, "", fmt.Errorf("no free file name for %s after %d attempts", FileName(prefix, t), maxCollisionSuffix)
}

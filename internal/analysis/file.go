package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/eventrec/internal/audiocore/sources/file"
	"github.com/tphakala/eventrec/internal/conf"
)

// Replay runs the recorder over a WAV or FLAC file. Block timestamps start
// at start, so recording names reflect the replayed timeline. The status
// endpoint is not served.
func Replay(ctx context.Context, settings *conf.Settings, path string, start time.Time) error {
	if err := validateAudioFile(path); err != nil {
		return err
	}

	source, err := file.NewSource(path, settings.Audio.BlockSize, start)
	if err != nil {
		return err
	}

	p, err := newPipeline(ctx, settings)
	if err != nil {
		return err
	}
	defer p.close()

	p.logger.Info("replaying audio file",
		"path", path,
		"start", start,
		"output", settings.Output.Path)

	return p.run(ctx, source, false)
}

// validateAudioFile checks that path is a non-empty regular file.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing file %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("the path %s is a directory, not a file", filepath.Base(path))
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty (0 bytes)", filepath.Base(path))
	}
	return nil
}

package analysis

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/tphakala/eventrec/internal/audiocore/sources/malgo"
	"github.com/tphakala/eventrec/internal/conf"
)

// Monitor captures from the configured device and records events until ctx
// is cancelled or the device fails.
func Monitor(ctx context.Context, settings *conf.Settings) error {
	p, err := newPipeline(ctx, settings)
	if err != nil {
		return err
	}
	defer p.close()

	logSystemDetails(ctx, p)

	source, err := malgo.NewSource(malgo.Config{
		HostAPI:      settings.Audio.HostAPI,
		DeviceName:   settings.Audio.DeviceName,
		SampleRate:   settings.Audio.SampleRate,
		BlockSize:    settings.Audio.BlockSize,
		Channels:     settings.Audio.ChannelCount,
		BufferBlocks: settings.Audio.BufferBlocks,
		Debug:        settings.Debug,
	})
	if err != nil {
		return err
	}

	p.logger.Info("starting event recorder",
		"device", settings.Audio.DeviceName,
		"host_api", settings.Audio.HostAPI,
		"output", settings.Output.Path,
		"config_file", conf.ConfigFileUsed())

	return p.run(ctx, source, true)
}

// logSystemDetails logs platform details; failures are only logged.
func logSystemDetails(ctx context.Context, p *pipeline) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		p.logger.Warn("error retrieving host info", "error", err)
		return
	}
	p.logger.Info("system details",
		"os", info.OS,
		"platform", strings.TrimSpace(info.Platform+" "+info.PlatformVersion),
		"kernel", info.KernelVersion,
		"arch", info.KernelArch,
		"hostname", info.Hostname)
}

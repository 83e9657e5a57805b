package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fixitrock/rockdl/internal/archive"
	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/download"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/state"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/notify"
	"github.com/fixitrock/rockdl/internal/registry"
	"github.com/fixitrock/rockdl/internal/usb"
	"github.com/fixitrock/rockdl/internal/utils"
)

const deviceScanInterval = 2 * time.Second

// daemonOptions tweak what startDaemon wires up.
type daemonOptions struct {
	DBPath       string // defaults to config.GetDBPath()
	SettingsPath string // defaults to config.GetSettingsPath()
	OutputDir    string // overrides general.default_download_dir
	NoResume     bool
	NoDevices    bool
}

// daemon owns the in-process engine: storage, registry, pool and service,
// plus the settings watcher and device scanner.
type daemon struct {
	settings *config.Settings
	store    *state.Store
	reg      *registry.Registry
	pool     *download.WorkerPool
	svc      *core.LocalDownloadService
	archiver *archive.Archiver

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func startDaemon(settings *config.Settings, opts daemonOptions) (*daemon, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if opts.DBPath == "" {
		opts.DBPath = config.GetDBPath()
	}
	if opts.SettingsPath == "" {
		opts.SettingsPath = config.GetSettingsPath()
	}

	store, err := state.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	log := utils.Logger()
	reg := registry.New(store, registry.WithLogger(log), registry.WithInterruptedAsPaused())

	outputDir := settings.General.DefaultDownloadDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	pool := download.NewWorkerPool(settings.Connections.MaxConcurrentDownloads,
		download.WithRuntime(types.ConvertRuntimeConfig(settings.ToRuntimeConfig())),
		download.WithDefaultDir(utils.EnsureAbsPath(outputDir)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	d := &daemon{
		settings: settings,
		store:    store,
		reg:      reg,
		pool:     pool,
		cancel:   cancel,
	}

	svcOpts := []core.LocalOption{core.WithLogger(log)}
	if settings.General.Notifications {
		svcOpts = append(svcOpts, core.WithNotifier(notify.NewLogNotifier(log)))
	}
	if bucket := settings.General.ArchiveBucket; bucket != "" {
		a, err := archive.Open(ctx, bucket, "")
		if err != nil {
			log.Warn("archive disabled", zap.String("bucket", bucket), zap.Error(err))
		} else {
			d.archiver = a
			svcOpts = append(svcOpts, core.WithArchiver(a))
		}
	}
	d.svc = core.NewLocalDownloadService(reg, pool, svcOpts...)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := config.Watch(ctx, opts.SettingsPath, func(s *config.Settings) {
			utils.Debug("Settings changed, applying runtime config")
			pool.SetRuntime(types.ConvertRuntimeConfig(s.ToRuntimeConfig()))
			if opts.OutputDir == "" {
				pool.SetDefaultDir(utils.EnsureAbsPath(s.General.DefaultDownloadDir))
			}
		}, func(err error) {
			utils.Debug("Settings watcher: %v", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.Debug("Settings watcher stopped: %v", err)
		}
	}()

	if !opts.NoDevices {
		scanner := usb.NewScanner(settings.Devices.BaudRate, settings.Devices.ProbeEnabled)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			scanner.Watch(ctx, deviceScanInterval, func(devices []usb.Device) {
				_ = d.svc.Publish(events.DeviceChangedMsg{Ports: devicePorts(devices)})
			})
		}()
	}

	if !opts.NoResume && settings.General.AutoResume {
		if n := d.svc.ResumePending(); n > 0 {
			utils.Debug("Resumed %d pending downloads", n)
		}
	}
	return d, nil
}

// Close stops background work, pauses transfers and closes storage.
func (d *daemon) Close() error {
	var err error
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
		err = d.svc.Shutdown()
		if d.archiver != nil {
			err = errors.Join(err, d.archiver.Close())
		}
		err = errors.Join(err, d.store.Close())
	})
	return err
}

func devicePorts(devices []usb.Device) []events.DevicePort {
	ports := make([]events.DevicePort, 0, len(devices))
	for _, dev := range devices {
		ports = append(ports, events.DevicePort{
			Name:      dev.Name,
			VendorID:  dev.VendorID,
			ProductID: dev.ProductID,
			Kind:      string(dev.Kind),
		})
	}
	return ports
}

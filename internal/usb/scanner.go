package usb

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"golang.org/x/sync/errgroup"

	"github.com/fixitrock/rockdl/internal/utils"
)

// DefaultBaudRate is used when the scanner has no baud rate set.
const DefaultBaudRate = 115200

// maxParallelProbes bounds how many ports are opened at once.
const maxParallelProbes = 4

// Device is a classified USB serial port.
type Device struct {
	Name         string
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
	Kind         Kind
}

// Scanner enumerates and classifies USB serial ports.
type Scanner struct {
	// List returns the ports to consider.
	List func() ([]*enumerator.PortDetails, error)
	// Open opens a port for probing.
	Open func(name string, baud int) (io.ReadWriteCloser, error)

	BaudRate int
	Probe    bool // send ADB/Fastboot probe commands
}

// NewScanner returns a scanner backed by the system serial enumerator.
func NewScanner(baud int, probe bool) *Scanner {
	return &Scanner{
		List:     enumerator.GetDetailedPortsList,
		Open:     openSerial,
		BaudRate: baud,
		Probe:    probe,
	}
}

func openSerial(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(FastbootTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// Scan lists USB ports and classifies each one by vendor. With probing on,
// each device must also answer over serial; one that does not is reported
// as KindGeneric. Probe failures never fail the scan.
func (s *Scanner) Scan(ctx context.Context) ([]Device, error) {
	ports, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		devices = append(devices, Device{
			Name:         p.Name,
			VendorID:     p.VID,
			ProductID:    p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
			Kind:         ClassifyVendor(parseID(p.VID), parseID(p.PID)),
		})
	}

	if !s.Probe || s.Open == nil {
		return devices, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)
	for i := range devices {
		g.Go(func() error {
			devices[i].Kind = s.probe(gctx, devices[i])
			return nil
		})
	}
	_ = g.Wait()
	return devices, nil
}

// probe confirms a device with one command chosen by its vendor guess.
// Anything short of a valid answer yields KindGeneric.
func (s *Scanner) probe(ctx context.Context, d Device) Kind {
	baud := s.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := s.Open(d.Name, baud)
	if err != nil {
		utils.Debug("Cannot open %s for probing: %v", d.Name, err)
		return KindGeneric
	}
	defer func() { _ = port.Close() }()

	if d.Kind == KindFastboot {
		if ProbeFastboot(ctx, port) {
			return KindFastboot
		}
		return KindGeneric
	}
	if ProbeADB(ctx, port) {
		return KindADB
	}
	return KindGeneric
}

// Watch rescans every interval and calls onChange whenever the device list
// differs from the previous scan. The first scan always reports. Watch
// blocks until ctx is done.
func (s *Scanner) Watch(ctx context.Context, interval time.Duration, onChange func([]Device)) {
	var prev []Device
	first := true

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		devices, err := s.Scan(ctx)
		if err != nil {
			utils.Debug("Device scan failed: %v", err)
		} else if first || !slices.Equal(prev, devices) {
			onChange(devices)
			prev, first = devices, false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

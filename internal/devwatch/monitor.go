// Package devwatch stops a debug-mode run when its local capture device is
// unplugged, using udev netlink events.
package devwatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"fieldrec/internal/logging"
)

// DevicePath returns the V4L2 node for a capture device index.
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// Monitor listens for video4linux removal events for one device node.
type Monitor struct {
	logger   *slog.Logger
	device   string
	onRemove func(device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New creates a monitor for device. It returns nil when device is empty.
func New(device string, onRemove func(device string), logger *slog.Logger) *Monitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Monitor{
		logger:   logging.NewComponentLogger(logger, "devwatch"),
		device:   device,
		onRemove: onRemove,
	}
}

// Start begins listening for udev netlink events. Failing to reach netlink
// is logged and otherwise ignored.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; device removal will surface as a stream stall", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run on Linux with access to udev netlink sockets"),
			logging.String(logging.FieldImpact, "unplugging the capture device stops the run after the stall timeout"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("device watch started",
		logging.String(logging.FieldEventType, "devwatch_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

// buildMatcher matches ACTION=remove on SUBSYSTEM=video4linux.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname != m.device {
		m.logger.Debug("ignoring removal of other device",
			logging.String("device", devname),
			logging.String("watched_device", m.device),
		)
		return
	}

	logging.WarnWithContext(m.logger, "capture device removed", "device_removed",
		logging.String("device", devname),
		logging.String(logging.FieldErrorHint, "reconnect the camera and restart the run"),
		logging.String(logging.FieldImpact, "recording stops after buffered frames are written"),
	)
	if m.onRemove != nil {
		m.onRemove(devname)
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}

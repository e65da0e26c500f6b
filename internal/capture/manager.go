package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/camhal/internal/events"
	"github.com/smazurov/camhal/pkg/camera"
	"github.com/smazurov/camhal/pkg/hal"
)

// ErrNotRunning is returned for addresses without a session.
var ErrNotRunning = errors.New("no capture session")

// Opener opens the device behind an address.
type Opener func(address string) (hal.Device, error)

// Manager keeps at most one session per address and restarts sessions
// whose device comes back after an unplug.
type Manager struct {
	open   Opener
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	wanted   map[string]Selector
}

// NewManager creates a manager. A nil opener uses camera.Open.
func NewManager(open Opener, opts Options) *Manager {
	if open == nil {
		open = func(address string) (hal.Device, error) { return camera.Open(address) }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.With("component", "capture")
	}
	return &Manager{
		open:     open,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
		wanted:   make(map[string]Selector),
	}
}

// Start opens address and streams the mode sel chooses. Starting an
// address that already has a running session fails with hal.ErrBusy.
func (m *Manager) Start(address string, sel Selector) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[address]; ok && s.Stats().Running {
		return nil, fmt.Errorf("capture %s: %w", address, hal.ErrBusy)
	}
	m.wanted[address] = sel
	return m.startLocked(address, sel)
}

func (m *Manager) startLocked(address string, sel Selector) (*Session, error) {
	if old, ok := m.sessions[address]; ok {
		_ = old.Stop()
		delete(m.sessions, address)
	}

	dev, err := m.open(address)
	if err != nil {
		return nil, err
	}
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(events.DeviceOpenedEvent{
			Address:   address,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	desc, err := sel.Choose(dev)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	opts := m.opts
	opts.Logger = m.logger
	s, err := Start(address, dev, desc, opts)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	m.sessions[address] = s
	return s, nil
}

// Stop ends the session on address and forgets it.
func (m *Manager) Stop(address string) error {
	m.mu.Lock()
	s, ok := m.sessions[address]
	delete(m.sessions, address)
	delete(m.wanted, address)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("capture %s: %w", address, ErrNotRunning)
	}
	return s.Stop()
}

// StopAll ends every session.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.wanted = make(map[string]Selector)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Stop())
	}
	return errors.Join(errs...)
}

// Get returns the session on address.
func (m *Manager) Get(address string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[address]
	return s, ok
}

// Addresses lists the addresses with a session, sorted.
func (m *Manager) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for a := range m.sessions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// WithDevice runs fn against the device behind address. A running session
// lends its device; otherwise the device is opened for the call only.
func (m *Manager) WithDevice(address string, fn func(hal.Device) error) error {
	m.mu.Lock()
	s, ok := m.sessions[address]
	m.mu.Unlock()
	if ok && s.Stats().Running {
		return fn(s.Device())
	}

	dev, err := m.open(address)
	if err != nil {
		return err
	}
	defer dev.Close()
	return fn(dev)
}

// SetControl writes raw to control id, typed by the control's kind, and
// publishes the change.
func (m *Manager) SetControl(address string, id uint32, raw int64) (hal.Value, error) {
	var v hal.Value
	err := m.WithDevice(address, func(dev hal.Device) error {
		controls, err := dev.QueryControls()
		if err != nil {
			return err
		}
		c, err := hal.FindControl(controls, id)
		if err != nil {
			return err
		}
		v = hal.ValueFor(c, raw)
		if err := c.Validate(v); err != nil {
			return err
		}
		return dev.SetControl(id, v)
	})
	if m.opts.Metrics != nil {
		m.opts.Metrics.ControlWrite(address, err)
	}
	if err != nil {
		return hal.None(), err
	}
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(events.ControlChangedEvent{
			Address:   address,
			ControlID: id,
			Value:     v.Int(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return v, nil
}

// HandleHotplug reacts to devices coming and going. A removed device's
// session is torn down but remembered, and restarted with the same
// selector when the address shows up again.
func (m *Manager) HandleHotplug(ev camera.Event) {
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(events.DeviceHotplugEvent{
			Action:    string(ev.Action),
			Address:   ev.Address,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Action {
	case camera.Removed:
		if s, ok := m.sessions[ev.Address]; ok {
			m.logger.Info("Capture device removed", "address", ev.Address)
			_ = s.Stop()
			delete(m.sessions, ev.Address)
		}
		if m.opts.Metrics != nil {
			m.opts.Metrics.Forget(ev.Address)
		}
	case camera.Added:
		sel, ok := m.wanted[ev.Address]
		if !ok {
			return
		}
		if s, running := m.sessions[ev.Address]; running && s.Stats().Running {
			return
		}
		if _, err := m.startLocked(ev.Address, sel); err != nil {
			m.logger.Warn("Failed to restart capture", "address", ev.Address, "error", err)
		}
	}
}

package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/wirasena/kommobridge/internal/logging"
)

// Manager routes events to registered handlers and isolates their failures.
// One handler may hold the default designation: it runs for every event,
// before the matching handlers, without consulting its own CanHandle.
type Manager struct {
	mu       sync.RWMutex
	handlers []Handler
	def      Handler
	log      *logging.Logger
}

// HandlerInfo is a diagnostic snapshot of one registered handler.
type HandlerInfo struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// NewManager creates an empty handler manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{log: log.Sub("handlers")}
}

// Register appends a handler to the dispatch order. Registering the same
// handler twice is a no-op.
func (m *Manager) Register(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered(h) {
		m.log.Warn().Str("handler", h.Name()).Msg("handler already registered")
		return
	}
	m.handlers = append(m.handlers, h)
	m.log.Info().Str("handler", h.Name()).Msg("registered handler")
}

// RegisterDefault registers h and makes it the default handler. A later call
// silently takes over the designation; the earlier default stays registered
// as a normal handler.
func (m *Manager) RegisterDefault(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered(h) {
		m.handlers = append(m.handlers, h)
	}
	m.def = h
	m.log.Info().Str("handler", h.Name()).Msg("registered default handler")
}

// Unregister removes a handler by identity and reports whether it was
// registered. Removing the default handler unsets the designation.
func (m *Manager) Unregister(h Handler) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, reg := range m.handlers {
		if reg == h {
			m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
			if m.def == h {
				m.def = nil
			}
			m.log.Info().Str("handler", h.Name()).Msg("unregistered handler")
			return true
		}
	}
	return false
}

// Dispatch runs the event through the default handler (always, first) and
// then through each non-default handler whose CanHandle matched, in
// registration order. Handler failures are logged and never stop the
// remaining handlers. Dispatch itself never fails.
func (m *Manager) Dispatch(ctx context.Context, path string, data any) {
	m.mu.RLock()
	def := m.def
	ordered := make([]Handler, len(m.handlers))
	copy(ordered, m.handlers)
	m.mu.RUnlock()

	run := make([]Handler, 0, len(ordered))
	if def != nil {
		run = append(run, def)
	}
	for _, h := range ordered {
		if h == def {
			continue
		}
		if m.canHandle(h, path, data) {
			run = append(run, h)
		}
	}

	if len(run) == 0 {
		m.log.Debug().Str("path", path).Msg("no handler for event")
		return
	}
	if def != nil && len(run) == 1 {
		m.log.Debug().Str("path", path).Str("handler", def.Name()).Msg("only the default handler matched")
	}

	for _, h := range run {
		m.invoke(ctx, h, path, data)
	}
}

// Handlers returns a snapshot of the registered handlers in dispatch order.
func (m *Manager) Handlers() []HandlerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(m.handlers))
	for _, h := range m.handlers {
		infos = append(infos, HandlerInfo{Name: h.Name(), Default: h == m.def})
	}
	return infos
}

// Clear removes every handler and the default designation.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.handlers)
	m.handlers = nil
	m.def = nil
	m.log.Info().Int("count", n).Msg("cleared handlers")
}

// registered reports whether h is already in the dispatch order.
// Callers hold the lock.
func (m *Manager) registered(h Handler) bool {
	for _, reg := range m.handlers {
		if reg == h {
			return true
		}
	}
	return false
}

// canHandle shields dispatch from a panicking CanHandle; a panic counts as
// not matching.
func (m *Manager) canHandle(h Handler, path string, data any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("handler", h.Name()).Str("path", path).
				Str("panic", fmt.Sprint(r)).Msg("CanHandle panicked")
			ok = false
		}
	}()
	return h.CanHandle(path, data)
}

// invoke runs one handler, keeping its error or panic away from the others.
func (m *Manager) invoke(ctx context.Context, h Handler, path string, data any) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("handler", h.Name()).Str("path", path).
				Str("panic", fmt.Sprint(r)).Msg("handler panicked")
		}
	}()

	if err := h.Handle(ctx, path, data); err != nil {
		m.log.Error().Err(err).Str("handler", h.Name()).Str("path", path).Msg("handler failed")
		return
	}
	m.log.Debug().Str("handler", h.Name()).Str("path", path).Msg("handler finished")
}

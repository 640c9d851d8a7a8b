package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/project-atrium/warder/internal/probe"
)

// NewObserver creates an application observer from configuration.
// This is a convenience wrapper that creates its own logger from cfg.
func NewObserver(cfg *ObservabilityConfig) (probe.ApplicationObserver, error) {
	return NewObserverWithLogger(cfg, NewLogger(cfg))
}

// NewObserverWithLogger creates an application observer using the provided logger.
// Use this when you want the observer to share a logger with other components.
func NewObserverWithLogger(cfg *ObservabilityConfig, logger *slog.Logger) (probe.ApplicationObserver, error) {
	if cfg == nil {
		// Default to no-op observer if not configured
		return &probe.NoOpApplicationObserver{}, nil
	}

	switch cfg.Type {
	case "logging":
		return probe.NewLoggingObserver(logger), nil
	case "noop", "":
		return &probe.NoOpApplicationObserver{}, nil
	case "composite":
		return newCompositeObserver(cfg)
	default:
		return nil, fmt.Errorf("unknown observability type: %s (supported: logging, noop, composite)", cfg.Type)
	}
}

// NewLogger creates a structured logger from the observability configuration.
// Returns slog.Default() if cfg is nil.
func NewLogger(cfg *ObservabilityConfig) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}

	defaultLevel := parseLogLevel(cfg.LogLevel)
	handler := createEventFilteringHandler(cfg, defaultLevel)
	return slog.New(handler)
}

// newCompositeObserver creates a composite observer that delegates to multiple observers
func newCompositeObserver(cfg *ObservabilityConfig) (probe.ApplicationObserver, error) {
	if len(cfg.Observers) == 0 {
		return nil, fmt.Errorf("composite observer requires at least one sub-observer")
	}

	var observers []probe.ApplicationObserver
	for i, subCfg := range cfg.Observers {
		observer, err := NewObserver(&subCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create observer %d: %w", i, err)
		}
		observers = append(observers, observer)
	}

	return probe.NewCompositeObserver(observers...), nil
}

// createEventFilteringHandler creates a handler that filters log events based on the event attribute
func createEventFilteringHandler(cfg *ObservabilityConfig, defaultLevel slog.Level) slog.Handler {
	baseHandler := createHandler(cfg.LogFormat, defaultLevel)

	// Build event-specific level map
	eventLevels := make(map[string]slog.Level)
	applyEventConfig(eventLevels, "auth_check", cfg.AuthCheck)
	applyEventConfig(eventLevels, "ingest", cfg.Ingest)

	return &eventFilteringHandler{
		next:         baseHandler,
		eventLevels:  eventLevels,
		defaultLevel: defaultLevel,
	}
}

func applyEventConfig(eventLevels map[string]slog.Level, event string, cfg *EventConfig) {
	if cfg == nil {
		return
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		eventLevels[event] = slog.Level(1000) // Effectively disabled
	} else if cfg.LogLevel != "" {
		eventLevels[event] = parseLogLevel(cfg.LogLevel)
	}
}

// eventFilteringHandler wraps a handler and filters based on the event
// attribute, whether it was attached per record or through Logger.With
type eventFilteringHandler struct {
	next         slog.Handler
	eventLevels  map[string]slog.Level
	defaultLevel slog.Level
	event        string
}

func (h *eventFilteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// The actual per-event filtering happens in Handle
	return level >= h.defaultLevel
}

func (h *eventFilteringHandler) Handle(ctx context.Context, record slog.Record) error {
	eventName := h.event
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "event" {
			eventName = attr.Value.String()
			return false
		}
		return true
	})

	if eventName != "" {
		if eventLevel, ok := h.eventLevels[eventName]; ok {
			if record.Level < eventLevel {
				return nil
			}
		}
	}

	return h.next.Handle(ctx, record)
}

func (h *eventFilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	event := h.event
	for _, attr := range attrs {
		if attr.Key == "event" {
			event = attr.Value.String()
		}
	}
	return &eventFilteringHandler{
		next:         h.next.WithAttrs(attrs),
		eventLevels:  h.eventLevels,
		defaultLevel: h.defaultLevel,
		event:        event,
	}
}

func (h *eventFilteringHandler) WithGroup(name string) slog.Handler {
	return &eventFilteringHandler{
		next:         h.next.WithGroup(name),
		eventLevels:  h.eventLevels,
		defaultLevel: h.defaultLevel,
		event:        h.event,
	}
}

// createHandler creates a slog handler based on format and level
func createHandler(format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(os.Stdout, opts)
	case "json", "":
		return slog.NewJSONHandler(os.Stdout, opts)
	default:
		return slog.NewJSONHandler(os.Stdout, opts)
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

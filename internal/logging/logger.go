package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex

	// output is where the text/JSON handler writes. Tests swap it.
	output io.Writer = os.Stdout
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. Loggers handed out earlier keep
// working and pick up the new levels and handlers.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	globalLevelVar.Set(levelOr(config.Level, slog.LevelInfo))

	// Handlers created before Initialize use the default format, so
	// rebuild them as well as resetting levels.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// SetLevels applies new levels without rebuilding handlers. Used when the
// config file changes while serving.
func SetLevels(level string, modules map[string]string) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = level
	globalConfig.Modules = modules
	globalLevelVar.Set(levelOr(level, slog.LevelInfo))
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(globalConfig, module))
	}
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(moduleLevel(globalConfig, module))
		format = globalConfig.Format
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

func moduleLevel(config Config, module string) slog.Level {
	level := levelOr(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// createHandler builds the handler chain: stdout when something is
// listening there, plus the journal when running under systemd.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(output, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(output, opts)
	}

	var handlers []slog.Handler
	if output != os.Stdout || isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or
// file rather than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func levelOr(level string, fallback slog.Level) slog.Level {
	if l, ok := ParseLevel(level); ok {
		return l
	}
	return fallback
}

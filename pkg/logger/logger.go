// Package logger provides standardized logging utilities for the jmmc compiler
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Global logger instance; nil until Init, which silences every helper
var defaultLogger *slog.Logger

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// ParseLevel reads a level name such as "debug" or "WARN"
func ParseLevel(s string) (LogLevel, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config holds logger configuration
type Config struct {
	Level     LogLevel
	Format    string // "text" or "json"
	Output    io.Writer
	AddSource bool
	LogFile   string // appended to instead of Output when set
}

// DefaultConfig logs warnings and errors as text on stderr
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: "text",
		Output: os.Stderr,
	}
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "", "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return nil
}

// InitDev logs everything, with source positions, as text on stderr
func InitDev() {
	_ = Init(Config{Level: LevelDebug, Format: "text", Output: os.Stderr, AddSource: true})
}

// InitFile writes JSON records at the given level to path
func InitFile(path string, level LogLevel) error {
	return Init(Config{Level: level, Format: "json", LogFile: path})
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, args...)
	}
}

// Compiler-specific logging helpers

// LogPhase logs the start of a compilation phase
func LogPhase(phase string) {
	Info("Starting compilation phase", "phase", phase)
}

// LogPhaseComplete logs the completion of a compilation phase
func LogPhaseComplete(phase string) {
	Info("Completed compilation phase", "phase", phase)
}

// LogOptimization logs one optimization pass over the tree
func LogOptimization(pass string, changeCount int) {
	Debug("Optimization pass complete", "pass", pass, "changes", changeCount)
}

// LogLowering logs IR generation for a method
func LogLowering(method string, instructionCount int, temps int) {
	Debug("IR lowering complete", "method", method, "instructions", instructionCount, "temps", temps)
}

// LogAllocation logs the outcome of register allocation for a method
func LogAllocation(method string, colors int, registers int) {
	Debug("Register allocation complete", "method", method, "colors", colors, "registers", registers)
}

// LogCodeGen logs code generation
func LogCodeGen(class string, method string, stackLimit int, localsLimit int) {
	Debug("Code generation complete",
		"class", class,
		"method", method,
		"stack", stackLimit,
		"locals", localsLimit)
}

// LogError logs a failed phase for a class
func LogError(phase string, class string, err error) {
	Error("Compilation error",
		"phase", phase,
		"class", class,
		"error", err)
}

// LogCompilerStart logs compiler startup
func LogCompilerStart(args []string) {
	Info("jmmc starting", "args", args)
}

// LogCompilerComplete logs compiler completion
func LogCompilerComplete(success bool, duration string) {
	if success {
		Info("Compilation successful", "duration", duration)
	} else {
		Error("Compilation failed", "duration", duration)
	}
}

// LogFileProcessing logs file processing start
func LogFileProcessing(file string) {
	Info("Processing file", "file", file)
}

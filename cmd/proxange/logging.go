package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logDir      = "logs"
	logFileName = "proxange.log"
	maxLogSize  = 10 * 1024 * 1024
)

// setupLogging builds the zap logger; the terminal owns stdout so logs go to path
// An empty path discards everything. A file over maxLogSize is rotated at startup
func setupLogging(path string, development bool) (*zap.Logger, *os.File, error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return zap.NewNop(), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		ext := filepath.Ext(path)
		rotated := fmt.Sprintf("%s-%s%s", path[:len(path)-len(ext)], time.Now().Format("20060102-150405"), ext)
		if err := os.Rename(path, rotated); err != nil {
			return nil, nil, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var (
		encCfg zapcore.EncoderConfig
		level  zapcore.Level
	)
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		level = zapcore.InfoLevel
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
	logger := zap.New(core, zap.AddCaller())

	// Library output through the std logger ends up in the same file
	zap.RedirectStdLog(logger)
	return logger, f, nil
}

// printBuildInfo logs the module versions the binary was built with
func printBuildInfo(logger *zap.Logger) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	settings := make(map[string]string)
	for _, v := range info.Settings {
		settings[v.Key] = v.Value
	}
	logger.Debug("Build info", zap.String("go", info.GoVersion), zap.Any("settings", settings))
}

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	timeLayout         = "2006-01-02 15:04:05.000"
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

// Options controls logger construction.
type Options struct {
	// Env "development" enables debug output.
	Env string
	// Dir, when set, also appends every line to a daily file in that directory.
	Dir string
	// Name prefixes the daily file name, e.g. "serve" gives serve_3-15-24.log.
	Name string
}

// New builds the console logger shared by every command.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if IsDevelopment(opts.Env) {
		level.SetLevel(zap.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		writer, err := NewDailyWriter(dir, opts.Name, time.Now)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}

func IsDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev":
		return true
	}
	return false
}

// DailyWriter appends to <dir>/<name>_<M-D-YY>.log, rolling over at midnight.
type DailyWriter struct {
	mu   sync.Mutex
	dir  string
	name string
	now  func() time.Time
}

func NewDailyWriter(dir, name string, now func() time.Time) (*DailyWriter, error) {
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "gainsights"
	}
	if now == nil {
		now = time.Now
	}
	return &DailyWriter{dir: dir, name: name, now: now}, nil
}

// Filename is the file name used for the day containing t.
func (w *DailyWriter) Filename(t time.Time) string {
	return w.name + "_" + t.Format("1-2-06") + ".log"
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, w.Filename(w.now()))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
	if err != nil {
		return 0, err
	}

	n, writeErr := file.Write(p)
	closeErr := file.Close()
	if writeErr != nil {
		return n, writeErr
	}
	return n, closeErr
}

func (w *DailyWriter) Sync() error { return nil }

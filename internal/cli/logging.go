package cli

import (
	"io"
	"sync"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/teamclock/teamclock/internal/config"
)

// newLogger writes human-readable logs to stderr and, when configured, to a
// rotating file. The returned func closes the file.
func newLogger(cfg config.LogConfig, stderr io.Writer) (slog.Logger, func()) {
	sinks := []slog.Sink{sloghuman.Sink(stderr)}
	closeFn := func() {}
	if cfg.File != "" {
		w := &closeOnceWriter{w: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}}
		sinks = append(sinks, sloghuman.Sink(w))
		closeFn = func() { _ = w.Close() }
	}

	log := slog.Make(sinks...)
	if cfg.Verbose {
		log = log.Leveled(slog.LevelDebug)
	}
	return log, closeFn
}

// closeOnceWriter drops writes after Close, because lumberjack reopens its
// file on every Write.
type closeOnceWriter struct {
	w io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func (c *closeOnceWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.w.Write(p)
}

func (c *closeOnceWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}

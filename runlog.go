package geotiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunLogTimeLayout is the timestamp prefix of every run log line.
const RunLogTimeLayout = "2006-01-02 15:04:05"

// A RunLog is an append-only, human readable record of task outcomes, safe
// for concurrent use. Each line is written to the file as soon as it is
// logged, under a single lock, so that an interrupted run leaves a complete
// record of everything that finished. A nil *RunLog discards everything.
type RunLog struct {
	file *os.File
	ws   zapcore.WriteSyncer
	zl   *zap.Logger
}

// OpenRunLog opens (creating it if needed) the log file at path for appending.
// If header is not empty it is written first, as a block of lines.
func OpenRunLog(path string, header string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runlog: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	ws := zapcore.Lock(f)
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout(RunLogTimeLayout),
		ConsoleSeparator: "  ",
	})
	rl := &RunLog{
		file: f,
		ws:   ws,
		zl:   zap.New(zapcore.NewCore(enc, ws, zapcore.DebugLevel)),
	}
	if header != "" {
		if !strings.HasSuffix(header, "\n") {
			header += "\n"
		}
		if _, err := ws.Write([]byte(header)); err != nil {
			f.Close()
			return nil, fmt.Errorf("runlog: write header: %w", err)
		}
	}
	return rl, nil
}

// Header formats a run header block from ordered key/value pairs.
func Header(title string, kv ...string) string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "\n=== %s ===\n", title)
	fmt.Fprintf(&sb, "time: %s\n", time.Now().Format(RunLogTimeLayout))
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, "%s: %s\n", kv[i], kv[i+1])
	}
	sb.WriteString(strings.Repeat("=", 50))
	return sb.String()
}

// Record appends one line describing o.
func (l *RunLog) Record(o Outcome) {
	if l == nil {
		return
	}
	l.zl.Info(o.String())
}

// Printf appends a single free-form line.
func (l *RunLog) Printf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// Close flushes and releases the log file. Lines logged after Close are
// discarded.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.ws.Sync()
	err := l.file.Close()
	l.file = nil
	l.zl = zap.NewNop()
	return err
}

package utilities

import (
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FrameLog appends a hex dump of every inbound chunk to a size-rotated
// file. A nil *FrameLog discards everything.
type FrameLog struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	now func() time.Time
}

func NewFrameLog(path string, maxSizeMB, maxBackups int) *FrameLog {
	if path == "" {
		return nil
	}
	return &FrameLog{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
		now: time.Now,
	}
}

// Record writes "<time> - <source> - <hex>".
func (f *FrameLog) Record(source string, data []byte) {
	if f == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(f.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	sb.WriteString(" - ")
	sb.WriteString(source)
	sb.WriteString(" - ")
	sb.WriteString(hex.EncodeToString(data))
	sb.WriteByte('\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.out.Write([]byte(sb.String()))
}

func (f *FrameLog) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}

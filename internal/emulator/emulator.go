// Package emulator adapts the files shared with the emulator script: the
// screenshot it writes each frame and the command stream it consumes.
package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/directive"
)

// #region screenshot

// ScreenshotFile reads the latest frame the emulator wrote to disk.
type ScreenshotFile struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// NewScreenshotFile returns an evidence source for path. Frames older than
// maxAge are rejected; zero disables the check.
func NewScreenshotFile(path string, maxAge time.Duration) *ScreenshotFile {
	return &ScreenshotFile{path: path, maxAge: maxAge, now: time.Now}
}

// Capture returns the current frame as an image attachment.
func (s *ScreenshotFile) Capture(ctx context.Context) (*codec.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat screenshot: %w", err)
	}
	if s.maxAge > 0 {
		if age := s.now().Sub(info.ModTime()); age > s.maxAge {
			return nil, fmt.Errorf("screenshot is stale: %s old", age.Round(time.Millisecond))
		}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	img, err := codec.NewImage(data)
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", s.path, err)
	}
	return img, nil
}

// #endregion screenshot

// #region commands

// Command is one line of the command stream.
type Command struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Op   string    `json:"op"` // "press" | "release" | "save_state"
	Key  string    `json:"key,omitempty"`
	Slot string    `json:"slot,omitempty"`
}

// CommandWriter appends commands as JSON lines. It is both the input sink
// for the pacing queue and the snapshot requester.
type CommandWriter struct {
	mu   sync.Mutex
	w    io.Writer
	c    io.Closer
	enc  *json.Encoder
	seq  uint64
	now  func() time.Time
	log  *zap.Logger
	slot string
}

// NewCommandWriter writes commands to w.
func NewCommandWriter(w io.Writer, log *zap.Logger) *CommandWriter {
	return &CommandWriter{w: w, enc: json.NewEncoder(w), now: time.Now, log: log.Named("emulator"), slot: "autosave"}
}

// OpenCommandLog opens path for appending, creating it and its directory.
func OpenCommandLog(path string, log *zap.Logger) (*CommandWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create command dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}
	cw := NewCommandWriter(f, log)
	cw.c = f
	return cw, nil
}

// Press asserts b.
func (cw *CommandWriter) Press(b directive.Button) {
	if err := cw.write(Command{Op: "press", Key: string(b)}); err != nil {
		cw.log.Error("press not delivered", zap.String("key", string(b)), zap.Error(err))
	}
}

// Release deasserts b.
func (cw *CommandWriter) Release(b directive.Button) {
	if err := cw.write(Command{Op: "release", Key: string(b)}); err != nil {
		cw.log.Error("release not delivered", zap.String("key", string(b)), zap.Error(err))
	}
}

// SaveSnapshot asks the emulator to save its state to the autosave slot.
func (cw *CommandWriter) SaveSnapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cw.write(Command{Op: "save_state", Slot: cw.slot}); err != nil {
		return fmt.Errorf("request snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the writer owns one.
func (cw *CommandWriter) Close() error {
	if cw.c == nil {
		return nil
	}
	return cw.c.Close()
}

func (cw *CommandWriter) write(c Command) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.seq++
	c.Seq = cw.seq
	c.At = cw.now().UTC()
	return cw.enc.Encode(c)
}

// #endregion commands

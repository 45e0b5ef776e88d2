package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/tabguard/internal/model"
	"github.com/crimson-sun/tabguard/internal/output"
)

const (
	defaultBufSize    = 64 * 1024
	defaultMaxBackups = 10

	// backupStamp sorts lexically in time order.
	backupStamp = "20060102T150405.000000000Z"
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize rotates the file before a write would take it past bytes.
// Zero keeps a single growing file.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithMaxBackups caps how many rotated files are kept. Zero or less keeps
// them all. Default: 10.
func WithMaxBackups(n int) Option {
	return func(o *Output) { o.maxBackups = n }
}

// WithBufSize sets the write buffer size.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithClock overrides the time used to name backups.
func WithClock(now func() time.Time) Option {
	return func(o *Output) { o.now = now }
}

// Output appends one JSON scan result per line. When rotation is on, a full
// file is renamed to <stem>-<UTC timestamp><ext> next to it and the
// oldest backups beyond the cap are removed.
type Output struct {
	mu sync.Mutex

	path       string
	verbosity  output.Verbosity
	maxSize    int64
	maxBackups int
	bufSize    int
	now        func() time.Time

	f    *os.File
	buf  *bufio.Writer
	size int64 // bytes in the live file, buffered included
}

// New opens path for appending, creating it if needed.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{
		path:       path,
		verbosity:  verbosity,
		maxBackups: defaultMaxBackups,
		bufSize:    defaultBufSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Output) Write(_ context.Context, result model.ScanResult) error {
	line, err := json.Marshal(output.FormatResult(result, o.verbosity))
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	// A file never rotates while empty, so an oversized line still lands.
	if o.maxSize > 0 && o.size > 0 && o.size+int64(len(line)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}
	n, err := o.buf.Write(line)
	o.size += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes pending lines and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	flushErr := o.buf.Flush()
	closeErr := o.f.Close()
	if flushErr != nil {
		return fmt.Errorf("file output: flush: %w", flushErr)
	}
	return closeErr
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.buf = bufio.NewWriterSize(f, o.bufSize)
	o.size = info.Size()
	return nil
}

func (o *Output) rotate() error {
	if err := o.buf.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(o.path, o.backupPath()); err != nil {
		return err
	}
	if err := o.prune(); err != nil {
		return err
	}
	return o.open()
}

// backupPath names a backup after the current UTC time. If the clock has
// not moved since the last rotation the stamp is nudged forward a
// nanosecond at a time so names stay unique and still sort in order.
func (o *Output) backupPath() string {
	stem, ext := splitExt(o.path)
	t := o.now().UTC()
	for {
		p := stem + "-" + t.Format(backupStamp) + ext
		if !fileExists(p) {
			return p
		}
		t = t.Add(time.Nanosecond)
	}
}

// Backups returns the rotated files of path, oldest first.
func Backups(path string) ([]string, error) {
	stem, ext := splitExt(path)
	matches, err := filepath.Glob(globEscape(stem) + "-*" + globEscape(ext))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

func (o *Output) prune() error {
	if o.maxBackups <= 0 {
		return nil
	}
	backups, err := Backups(o.path)
	if err != nil {
		return err
	}
	for len(backups) > o.maxBackups {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

func splitExt(path string) (stem, ext string) {
	ext = filepath.Ext(path)
	return strings.TrimSuffix(path, ext), ext
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

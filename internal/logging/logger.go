package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"
)

const dateLayout = "2006-01-02"

var fileNamePattern = regexp.MustCompile(`^agent-(\d{4}-\d{2}-\d{2})\.log$`)

// FileName is the log file name used for the given UTC day.
func FileName(day time.Time) string {
	return fmt.Sprintf("agent-%s.log", day.UTC().Format(dateLayout))
}

// ParseFileDate extracts the day from a log file name produced by FileName.
func ParseFileDate(name string) (time.Time, bool) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if len(matches) != 2 {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, matches[1])
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// DailyFile is an io.Writer appending to one file per UTC day under dir.
type DailyFile struct {
	dir  string
	now  func() time.Time
	mu   sync.Mutex
	file *os.File
	date string
}

func NewDailyFile(dir string) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	d := &DailyFile{dir: dir, now: time.Now}
	if err := d.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *DailyFile) rotateIfNeeded() error {
	now := d.now().UTC()
	currentDate := now.Format(dateLayout)

	if d.file != nil && d.date == currentDate {
		return nil
	}

	if d.file != nil {
		d.file.Close()
	}

	filename := filepath.Join(d.dir, FileName(now))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		d.file = nil
		return fmt.Errorf("failed to open log file: %w", err)
	}

	d.file = file
	d.date = currentDate
	return nil
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

type Options struct {
	Dir     string
	File    bool
	Console bool
	Debug   bool
}

var debug atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup routes the standard logger to the console and/or the daily file.
// The returned closer releases the file.
func Setup(opts Options) (io.Writer, io.Closer, error) {
	setDebug(opts.Debug)

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.Console {
		writers = append(writers, os.Stdout)
	}
	if opts.File {
		df, err := NewDailyFile(opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, df)
		closer = df
	}

	out := io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	log.SetOutput(out)
	log.SetFlags(log.LstdFlags)
	return out, closer, nil
}

func setDebug(enabled bool) {
	debug.Store(enabled)
}

// Debugf logs only when debug output is enabled.
func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Printf("debug: "+format, args...)
	}
}

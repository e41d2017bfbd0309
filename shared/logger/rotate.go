package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailyRotatingFile writes to path, rotating to path.YYYY-MM-DD at the first
// write after local midnight and keeping at most maxBackups rotated files
// (oldest deleted). No third-party library in the reference corpus covers
// file rotation; this is a small, self-contained stdlib implementation.
type dailyRotatingFile struct {
	mu          sync.Mutex
	path        string
	maxBackups  int
	file        *os.File
	currentDay  string
}

func newDailyRotatingFile(path string, maxBackups int) (io.Writer, error) {
	d := &dailyRotatingFile{path: path, maxBackups: maxBackups}
	if err := d.openForToday(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyRotatingFile) openForToday() error {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", d.path, err)
	}
	d.file = f
	d.currentDay = today()
	return nil
}

func (d *dailyRotatingFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if today() != d.currentDay {
		if err := d.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed for %s: %v\n", d.path, err)
		}
	}
	return d.file.Write(p)
}

func (d *dailyRotatingFile) rotate() error {
	if err := d.file.Close(); err != nil {
		return err
	}

	rotatedName := d.path + "." + d.currentDay
	if err := os.Rename(d.path, rotatedName); err != nil && !os.IsNotExist(err) {
		return err
	}

	d.pruneBackups()

	return d.openForToday()
}

func (d *dailyRotatingFile) pruneBackups() {
	dir := filepath.Dir(d.path)
	base := filepath.Base(d.path)
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil || len(matches) <= d.maxBackups {
		return
	}

	// Glob returns lexically sorted names; the date suffix sorts chronologically.
	excess := len(matches) - d.maxBackups
	for _, old := range matches[:excess] {
		os.Remove(old)
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

package storage

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"status-agent/internal/logging"
)

const pruneInterval = 6 * time.Hour

// Rotator deletes agent log files older than the retention window.
type Rotator struct {
	logDir        string
	retentionDays int
	stopCh        chan struct{}
	doneCh        chan struct{}
}

func NewRotator(logDir string, retentionDays int) *Rotator {
	return &Rotator{
		logDir:        logDir,
		retentionDays: retentionDays,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

func (r *Rotator) Start() {
	go r.run()
}

func (r *Rotator) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Rotator) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	r.rotate(time.Now())

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			r.rotate(now)
		}
	}
}

// rotate removes files whose day is before now minus the retention window
// and returns how many were deleted.
func (r *Rotator) rotate(now time.Time) int {
	entries, err := os.ReadDir(r.logDir)
	if err != nil {
		return 0
	}

	cutoff := now.UTC().AddDate(0, 0, -r.retentionDays)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileDate, ok := logging.ParseFileDate(entry.Name())
		if !ok {
			continue
		}

		if fileDate.Before(cutoff) {
			filePath := filepath.Join(r.logDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("log retention: remove %s: %v", filePath, err)
				continue
			}
			removed++
		}
	}

	return removed
}

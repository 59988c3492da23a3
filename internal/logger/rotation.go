package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter writes to a file and renames it aside once it exceeds
// maxSize. Rotated files older than maxAge days are removed.
type RotatingWriter struct {
	mu          sync.Mutex
	filename    string
	maxSize     int64 // bytes; zero disables rotation
	maxAge      int   // days
	compress    bool
	currentFile *os.File
	currentSize int64
	now         func() time.Time
	background  sync.WaitGroup
}

// NewRotatingWriter opens filename for append, creating its directory
func NewRotatingWriter(filename string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	rw := &RotatingWriter{
		filename:    filename,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		maxAge:      maxAge,
		compress:    compress,
		currentFile: file,
		currentSize: info.Size(),
		now:         time.Now,
	}

	rw.background.Add(1)
	go func() {
		defer rw.background.Done()
		rw.cleanup()
	}()

	return rw, nil
}

// Write appends p, rotating first when p would push the file past maxSize
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return 0, os.ErrClosed
	}

	if w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close waits for background compression and cleanup, then closes the file
func (w *RotatingWriter) Close() error {
	w.background.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// rotate must be called with mu held
func (w *RotatingWriter) rotate() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotatedName := fmt.Sprintf("%s.%s", w.filename, w.now().Format("20060102-150405.000"))
	if err := os.Rename(w.filename, rotatedName); err != nil {
		return err
	}

	if w.compress {
		w.background.Add(1)
		go func() {
			defer w.background.Done()
			_ = compressFile(rotatedName)
		}()
	}

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w.currentFile = file
	w.currentSize = 0
	return nil
}

// compressFile gzips filename to filename.gz and removes the original
func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(filename)
}

// cleanup removes rotated files older than maxAge days
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return
	}

	cutoff := w.now().AddDate(0, 0, -w.maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
			if !strings.HasSuffix(file, ".gz") {
				os.Remove(file + ".gz")
			}
		}
	}
}

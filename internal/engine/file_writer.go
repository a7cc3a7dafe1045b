package engine

import (
	"fmt"
	"os"
	"sync"
)

type fileHandle struct {
	mu   sync.Mutex
	file *os.File
}

// FileWriter owns the open part-file handles for a run and performs
// offset-positioned writes. Re-attempts of a segment overwrite the same
// range instead of appending, which is what makes retries safe.
type FileWriter struct {
	mu      sync.RWMutex
	handles map[string]*fileHandle
}

func NewFileWriter() *FileWriter {
	return &FileWriter{
		handles: make(map[string]*fileHandle),
	}
}

// WriteAt writes data at offset in the file at path, opening it on first use.
func (fw *FileWriter) WriteAt(path string, data []byte, offset int64) error {
	h, err := fw.getOrCreate(path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err = h.file.WriteAt(data, offset)
	return err
}

// PreAllocate extends the file to size. On Unix this produces a sparse
// file, so workers can write any segment without racing past EOF.
func (fw *FileWriter) PreAllocate(path string, size int64) error {
	h, err := fw.getOrCreate(path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.file.Truncate(size)
}

func (fw *FileWriter) getOrCreate(path string) (*fileHandle, error) {
	fw.mu.RLock()
	h, ok := fw.handles[path]
	fw.mu.RUnlock()
	if ok {
		return h, nil
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	h, ok = fw.handles[path]
	if ok {
		return h, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open output file: %w", err)
	}

	h = &fileHandle{file: f}
	fw.handles[path] = h

	return h, nil
}

// CloseFile syncs and closes the handle for path. When finalSize is
// positive the file is truncated first, trimming any preallocation slack.
func (fw *FileWriter) CloseFile(path string, finalSize int64) error {
	fw.mu.Lock()
	h, ok := fw.handles[path]
	if ok {
		delete(fw.handles, path)
	}
	fw.mu.Unlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if finalSize > 0 {
		if err := h.file.Truncate(finalSize); err != nil {
			return fmt.Errorf("failed to truncate to final size: %w", err)
		}
	}

	if err := h.file.Sync(); err != nil {
		h.file.Close()
		return err
	}
	return h.file.Close()
}

// CloseAll closes every open handle, ignoring errors. Used on teardown.
func (fw *FileWriter) CloseAll() {
	fw.mu.RLock()
	paths := make([]string, 0, len(fw.handles))
	for path := range fw.handles {
		paths = append(paths, path)
	}
	fw.mu.RUnlock()

	for _, path := range paths {
		_ = fw.CloseFile(path, 0)
	}
}

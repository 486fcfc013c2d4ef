package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r--  owner read/write, everyone else read only
const fileModeLog fs.FileMode = 0644

// WAL is an append-only, fsync'd JSON log. Each Write lands one record on
// its own line and is flushed to disk before returning.
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// NewWAL opens or creates the log file. O_APPEND makes every write land
// at the end of the file regardless of concurrent writers.
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeLog)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write appends one record and syncs it to disk.
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// ReadAll replays every record from the start of the file, handing the
// raw JSON of each to callback. Streaming via the decoder keeps memory
// usage flat regardless of log size.
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.file.Close()
}

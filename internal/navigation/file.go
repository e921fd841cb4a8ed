package navigation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gigmarket/gigmarket/internal/models"
	"go.uber.org/zap"
)

// FileHistory is a MemoryHistory mirrored into a JSON file after every
// mutation, so a restarted shell comes back to the same stack. This is what
// a page reload is to the browser history.
type FileHistory struct {
	*MemoryHistory
	path string
	log  *zap.Logger
}

type historyFile struct {
	Entries []*models.NavigationState `json:"entries"`
	Index   int                       `json:"index"`
}

// NewFileHistory loads the stack stored at path. A missing file yields a
// fresh single-entry history; a corrupt one is reported.
func NewFileHistory(path string, log *zap.Logger) (*FileHistory, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &FileHistory{MemoryHistory: NewMemoryHistory(), path: path, log: log}
	if err := h.Load(); err != nil {
		return nil, err
	}
	return h, nil
}

// Load reads the stack from disk.
func (h *FileHistory) Load() error {
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var hf historyFile
	if err := json.NewDecoder(f).Decode(&hf); err != nil {
		return fmt.Errorf("decode history %s: %w", h.path, err)
	}
	h.restoreSnapshot(hf.Entries, hf.Index)
	return nil
}

// Save writes the stack to disk.
func (h *FileHistory) Save() error {
	entries, index := h.snapshot()
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(h.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(historyFile{Entries: entries, Index: index})
}

// Push appends state and saves the stack.
func (h *FileHistory) Push(state models.NavigationState) {
	h.MemoryHistory.Push(state)
	h.persist()
}

// ReplaceTop overwrites the current entry and saves the stack.
func (h *FileHistory) ReplaceTop(state models.NavigationState) {
	h.MemoryHistory.ReplaceTop(state)
	h.persist()
}

// Back moves to the previous entry and saves the cursor.
func (h *FileHistory) Back() bool {
	ok := h.MemoryHistory.Back()
	if ok {
		h.persist()
	}
	return ok
}

// Forward moves to the next entry and saves the cursor.
func (h *FileHistory) Forward() bool {
	ok := h.MemoryHistory.Forward()
	if ok {
		h.persist()
	}
	return ok
}

// persist never fails the navigation; the in-memory stack stays authoritative.
func (h *FileHistory) persist() {
	if err := h.Save(); err != nil {
		h.log.Warn("failed to persist navigation history", zap.String("path", h.path), zap.Error(err))
	}
}

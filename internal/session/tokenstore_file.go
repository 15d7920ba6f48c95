// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore persists the token in a single file readable only by the owner.
//
// Writes go through a temp file and a rename so a concurrent reader never
// observes a half-written token.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file and its directory
// are created on the first [FileStore.Set].
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (store *FileStore) Path() string {
	return store.path
}

// Get implements [TokenStore].
func (store *FileStore) Get(_ context.Context) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.read()
}

func (store *FileStore) read() (string, error) {
	data, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("file_token_get_failed: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set implements [TokenStore].
func (store *FileStore) Set(_ context.Context, token string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	dir := filepath.Dir(store.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file_token_set_failed: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("file_token_set_failed: %w", err)
	}
	tempPath := temp.Name()

	// CreateTemp already uses 0600; the rename keeps those permissions.
	if _, err := temp.WriteString(token); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("file_token_set_failed: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("file_token_set_failed: %w", err)
	}
	if err := os.Rename(tempPath, store.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("file_token_set_failed: %w", err)
	}

	return nil
}

// Clear implements [TokenStore].
func (store *FileStore) Clear(_ context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := os.Remove(store.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file_token_clear_failed: %w", err)
	}
	return nil
}

// Watch reports changes made to the token file by other processes (another
// crmctl logging in or out) until ctx is cancelled.
//
// onChange receives the token now on disk, "" after a removal. The directory
// is watched rather than the file because [FileStore.Set] replaces the file
// by rename. Watch blocks; run it on its own goroutine.
func (store *FileStore) Watch(ctx context.Context, logger *slog.Logger, onChange func(token string)) error {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(store.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file_token_watch_failed: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file_token_watch_failed: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("file_token_watch_failed: %w", err)
	}

	name := filepath.Base(store.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			token, err := store.Get(ctx)
			if err != nil {
				logger.Warn("token_file_reread_failed", slog.Any("error", err))
				continue
			}
			onChange(token)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("token_file_watch_error", slog.Any("error", err))
		}
	}
}

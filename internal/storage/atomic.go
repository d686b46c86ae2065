package storage

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const backupSuffix = ".backup"

// AtomicWriter writes files through a verified temp file and rename, keeping
// a timestamped backup of the previous version when backupDir is set.
type AtomicWriter struct {
	locks     map[string]*sync.RWMutex // per-file locks
	locksMu   sync.Mutex               // protects the locks map
	backupDir string
}

// NewAtomicWriter creates a new atomic writer. An empty backupDir disables backups.
func NewAtomicWriter(backupDir string) *AtomicWriter {
	return &AtomicWriter{
		locks:     make(map[string]*sync.RWMutex),
		backupDir: backupDir,
	}
}

// WriteFile writes data to a file atomically with backup
func (w *AtomicWriter) WriteFile(filename string, data []byte, perm os.FileMode) error {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	return w.writeLocked(filename, data, perm)
}

func (w *AtomicWriter) writeLocked(filename string, data []byte, perm os.FileMode) error {
	if err := w.createBackup(filename); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filename + ".tmp." + uuid.NewString()[:8]
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := verifyFileIntegrity(tempFile, data); err != nil {
		os.Remove(tempFile)
		return err
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ReadFile reads a file, restoring it from the newest backup when it is
// missing or empty
func (w *AtomicWriter) ReadFile(filename string) ([]byte, error) {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && w.backupDir != "" {
			if restored, rerr := w.recoverFromBackup(filename); rerr == nil {
				return restored, nil
			}
		}
		return nil, err
	}

	if len(data) == 0 {
		return w.recoverFromBackup(filename)
	}

	return data, nil
}

// createBackup copies the existing file into the backup directory
func (w *AtomicWriter) createBackup(filename string) error {
	if w.backupDir == "" {
		return nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}

	if err := os.MkdirAll(w.backupDir, 0o755); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	backupName := fmt.Sprintf("%s.%s%s", filepath.Base(filename), timestamp, backupSuffix)
	return copyFile(filename, filepath.Join(w.backupDir, backupName))
}

// backupsOf returns the backups of filename, newest first
func (w *AtomicWriter) backupsOf(filename string) ([]string, error) {
	pattern := filepath.Join(w.backupDir, filepath.Base(filename)+".*"+backupSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	// the timestamp layout sorts lexically
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

// recoverFromBackup restores the most recent backup of filename. Caller holds the file lock.
func (w *AtomicWriter) recoverFromBackup(filename string) ([]byte, error) {
	if w.backupDir == "" {
		return nil, fmt.Errorf("no backup directory configured")
	}

	backups, err := w.backupsOf(filename)
	if err != nil || len(backups) == 0 {
		return nil, fmt.Errorf("no backup found for %s", filename)
	}

	data, err := os.ReadFile(backups[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	if err := w.writeLocked(filename, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to restore backup: %w", err)
	}

	return data, nil
}

// getFileLock gets or creates a lock for a specific file
func (w *AtomicWriter) getFileLock(filename string) *sync.RWMutex {
	w.locksMu.Lock()
	defer w.locksMu.Unlock()

	if lock, exists := w.locks[filename]; exists {
		return lock
	}

	lock := &sync.RWMutex{}
	w.locks[filename] = lock
	return lock
}

// CleanupBackups keeps at most maxCount backups per file and drops backups
// older than maxAge. Zero disables either limit.
func (w *AtomicWriter) CleanupBackups(maxAge time.Duration, maxCount int) error {
	if w.backupDir == "" {
		return nil
	}

	entries, err := os.ReadDir(w.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// backup names are <file>.<timestamp>.backup
	groups := make(map[string][]os.DirEntry)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stem := strings.TrimSuffix(name, backupSuffix)
		dot := strings.LastIndex(strings.TrimSuffix(stem, filepath.Ext(stem)), ".")
		if dot <= 0 {
			continue
		}
		groups[stem[:dot]] = append(groups[stem[:dot]], entry)
	}

	now := time.Now()
	for _, backups := range groups {
		sort.Slice(backups, func(i, j int) bool { return backups[i].Name() > backups[j].Name() })
		for i, backup := range backups {
			info, err := backup.Info()
			if err != nil {
				continue
			}
			expired := maxAge > 0 && now.Sub(info.ModTime()) > maxAge
			surplus := maxCount > 0 && i >= maxCount
			if !expired && !surplus {
				continue
			}
			path := filepath.Join(w.backupDir, backup.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove backup %s: %w", path, err)
			}
		}
	}

	return nil
}

// verifyFileIntegrity verifies that written data matches expected data
func verifyFileIntegrity(filename string, expected []byte) error {
	actual, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if sha256.Sum256(expected) != sha256.Sum256(actual) {
		return fmt.Errorf("file integrity check failed: hash mismatch")
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

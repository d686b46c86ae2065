package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yairfalse/palautus/pkg/types"
)

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	config    Config
	baseDir   string
	snapshots string
	reports   string
	writer    *AtomicWriter
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(config Config) (*LocalStorage, error) {
	if config.BaseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		config.BaseDir = filepath.Join(homeDir, ".palautus")
	}

	backupDir := ""
	if config.Backups {
		backupDir = filepath.Join(config.BaseDir, "backups")
	}

	storage := &LocalStorage{
		config:    config,
		baseDir:   config.BaseDir,
		snapshots: filepath.Join(config.BaseDir, "snapshots"),
		reports:   filepath.Join(config.BaseDir, "reports"),
		writer:    NewAtomicWriter(backupDir),
	}

	for _, dir := range []string{storage.baseDir, storage.snapshots, storage.reports} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return storage, nil
}

// BaseDir returns the root directory of the store
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// SaveSnapshot saves a snapshot to disk as <id>.json
func (s *LocalStorage) SaveSnapshot(snapshot *types.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return s.saveJSON(s.snapshotPath(snapshot.ID), snapshot)
}

// LoadSnapshot loads a snapshot by id, by name or "latest"
func (s *LocalStorage) LoadSnapshot(ref string) (*types.Snapshot, error) {
	if ref == Latest {
		infos, err := s.ListSnapshots()
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, fmt.Errorf("no snapshots stored: %w", ErrNotFound)
		}
		ref = infos[0].ID
	}

	var snapshot types.Snapshot
	path := s.snapshotPath(ref)
	if _, err := os.Stat(path); err == nil {
		if err := s.loadJSON(path, &snapshot); err != nil {
			return nil, err
		}
		return &snapshot, nil
	}

	// fall back to a name match
	files, err := os.ReadDir(s.snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		var candidate types.Snapshot
		if err := s.loadJSON(filepath.Join(s.snapshots, file.Name()), &candidate); err != nil {
			continue
		}
		if candidate.Name != "" && candidate.Name == ref {
			return &candidate, nil
		}
	}

	return nil, fmt.Errorf("snapshot %s: %w", ref, ErrNotFound)
}

// ListSnapshots returns metadata for all stored snapshots, newest first
func (s *LocalStorage) ListSnapshots() ([]SnapshotInfo, error) {
	files, err := os.ReadDir(s.snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	var infos []SnapshotInfo
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.snapshots, file.Name())
		stat, err := file.Info()
		if err != nil {
			continue
		}

		var snapshot types.Snapshot
		if err := s.loadJSON(path, &snapshot); err != nil {
			continue
		}

		kinds := make(map[string]int, len(snapshot.Resources))
		for kind, records := range snapshot.Resources {
			kinds[string(kind)] = len(records)
		}

		infos = append(infos, SnapshotInfo{
			ID:            snapshot.ID,
			Name:          snapshot.Name,
			Timestamp:     snapshot.Timestamp,
			ResourceCount: snapshot.ResourceCount(),
			Kinds:         kinds,
			FilePath:      path,
			FileSize:      stat.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	return infos, nil
}

// DeleteSnapshot removes a snapshot from disk
func (s *LocalStorage) DeleteSnapshot(ref string) error {
	snapshot, err := s.LoadSnapshot(ref)
	if err != nil {
		return err
	}
	return os.Remove(s.snapshotPath(snapshot.ID))
}

// SaveReport saves a reconciliation report to disk as <id>.json
func (s *LocalStorage) SaveReport(report *types.Report) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	return s.saveJSON(s.reportPath(report.ID), report)
}

// LoadReport loads a report by id or "latest"
func (s *LocalStorage) LoadReport(ref string) (*types.Report, error) {
	if ref == Latest {
		infos, err := s.ListReports()
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, fmt.Errorf("no reports stored: %w", ErrNotFound)
		}
		ref = infos[0].ID
	}

	path := s.reportPath(ref)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("report %s: %w", ref, ErrNotFound)
	}

	var report types.Report
	if err := s.loadJSON(path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns metadata for all stored reports, newest first
func (s *LocalStorage) ListReports() ([]ReportInfo, error) {
	files, err := os.ReadDir(s.reports)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var infos []ReportInfo
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.reports, file.Name())
		stat, err := file.Info()
		if err != nil {
			continue
		}

		var report types.Report
		if err := s.loadJSON(path, &report); err != nil {
			continue
		}

		totals := report.Totals()
		infos = append(infos, ReportInfo{
			ID:         report.ID,
			BaselineID: report.BaselineID,
			CurrentID:  report.CurrentID,
			Timestamp:  report.Timestamp,
			Fixes:      totals.Fixes,
			Conflicts:  totals.Conflicts,
			FilePath:   path,
			FileSize:   stat.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	return infos, nil
}

func (s *LocalStorage) snapshotPath(id string) string {
	return filepath.Join(s.snapshots, sanitizeFilename(id)+".json")
}

func (s *LocalStorage) reportPath(id string) string {
	return filepath.Join(s.reports, sanitizeFilename(id)+".json")
}

// saveJSON writes data as indented JSON through the atomic writer
func (s *LocalStorage) saveJSON(path string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := s.writer.WriteFile(path, append(content, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := s.writer.CleanupBackups(s.config.BackupMaxAge, s.config.MaxBackups); err != nil {
		return fmt.Errorf("saved %s but failed to prune backups: %w", path, err)
	}
	return nil
}

// loadJSON loads JSON data from the specified path
func (s *LocalStorage) loadJSON(path string, target interface{}) error {
	data, err := s.writer.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "-")
	}
	return result
}

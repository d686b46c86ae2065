package storage

import (
	"errors"
	"time"

	"github.com/yairfalse/palautus/pkg/types"
)

// ErrNotFound is returned when a stored snapshot or report does not exist
var ErrNotFound = errors.New("not found")

// Latest resolves to the most recent snapshot or report
const Latest = "latest"

// Storage defines the interface for persisting snapshots and reports
type Storage interface {
	// Snapshot operations
	SaveSnapshot(snapshot *types.Snapshot) error
	LoadSnapshot(ref string) (*types.Snapshot, error)
	ListSnapshots() ([]SnapshotInfo, error)
	DeleteSnapshot(ref string) error

	// Report operations
	SaveReport(report *types.Report) error
	LoadReport(ref string) (*types.Report, error)
	ListReports() ([]ReportInfo, error)
}

// SnapshotInfo provides metadata about a stored snapshot
type SnapshotInfo struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name,omitempty" yaml:"name,omitempty"`
	Timestamp     time.Time      `json:"timestamp" yaml:"timestamp"`
	ResourceCount int            `json:"resource_count" yaml:"resource_count"`
	Kinds         map[string]int `json:"kinds" yaml:"kinds"`
	FilePath      string         `json:"file_path" yaml:"file_path"`
	FileSize      int64          `json:"file_size" yaml:"file_size"`
}

// ReportInfo provides metadata about a stored report
type ReportInfo struct {
	ID         string    `json:"id" yaml:"id"`
	BaselineID string    `json:"baseline_id" yaml:"baseline_id"`
	CurrentID  string    `json:"current_id" yaml:"current_id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Fixes      int       `json:"fixes" yaml:"fixes"`
	Conflicts  int       `json:"conflicts" yaml:"conflicts"`
	FilePath   string    `json:"file_path" yaml:"file_path"`
	FileSize   int64     `json:"file_size" yaml:"file_size"`
}

// Config holds storage configuration
type Config struct {
	BaseDir string `json:"base_dir"`
	Backups bool   `json:"backups"`
	// MaxBackups is the number of backups kept per file; zero keeps all
	MaxBackups int `json:"max_backups"`
	// BackupMaxAge drops older backups; zero keeps them regardless of age
	BackupMaxAge time.Duration `json:"backup_max_age"`
}

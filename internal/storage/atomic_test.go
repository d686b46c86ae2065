package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAtomicWriter_WriteFile(t *testing.T) {
	tempDir := t.TempDir()
	backupDir := filepath.Join(tempDir, "backups")
	writer := NewAtomicWriter(backupDir)

	testFile := filepath.Join(tempDir, "snap.json")
	testData := []byte(`{"id":"a"}`)

	if err := writer.WriteFile(testFile, testData, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("File content mismatch. Expected: %s, Got: %s", testData, data)
	}

	// Overwriting keeps the old version as a backup
	newData := []byte(`{"id":"b"}`)
	if err := writer.WriteFile(testFile, newData, 0o644); err != nil {
		t.Fatalf("Failed to overwrite file: %v", err)
	}

	data, err = os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read updated file: %v", err)
	}
	if string(data) != string(newData) {
		t.Errorf("Updated file content mismatch. Expected: %s, Got: %s", newData, data)
	}

	backups, err := filepath.Glob(filepath.Join(backupDir, "snap.json.*.backup"))
	if err != nil {
		t.Fatalf("Failed to check for backup files: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup file, got %d", len(backups))
	}

	leftovers, _ := filepath.Glob(filepath.Join(tempDir, "snap.json.tmp.*"))
	if len(leftovers) != 0 {
		t.Errorf("Temp files left behind: %v", leftovers)
	}
}

func TestAtomicWriter_ConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewAtomicWriter("")
	testFile := filepath.Join(tempDir, "concurrent.json")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- writer.WriteFile(testFile, []byte(fmt.Sprintf("writer-%d", i)), 0o644)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent write failed: %v", err)
		}
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if len(data) == 0 {
		t.Error("File is empty after concurrent writes")
	}
}

func TestAtomicWriter_ReadFileWithRecovery(t *testing.T) {
	tempDir := t.TempDir()
	backupDir := filepath.Join(tempDir, "backups")
	writer := NewAtomicWriter(backupDir)
	testFile := filepath.Join(tempDir, "report.json")

	original := []byte("original")
	if err := writer.WriteFile(testFile, original, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := writer.WriteFile(testFile, []byte("second"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	// Truncate the file to simulate corruption
	if err := os.WriteFile(testFile, nil, 0o644); err != nil {
		t.Fatalf("Failed to truncate file: %v", err)
	}

	data, err := writer.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to recover file: %v", err)
	}
	if string(data) != string(original) {
		t.Errorf("Recovered content mismatch. Expected: %s, Got: %s", original, data)
	}

	onDisk, _ := os.ReadFile(testFile)
	if string(onDisk) != string(original) {
		t.Errorf("Recovered content was not restored to disk, got %s", onDisk)
	}
}

func TestAtomicWriter_ReadFileMissingWithoutBackups(t *testing.T) {
	writer := NewAtomicWriter("")

	_, err := writer.ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestAtomicWriter_CleanupBackups(t *testing.T) {
	tempDir := t.TempDir()
	backupDir := filepath.Join(tempDir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		t.Fatal(err)
	}

	names := []string{
		"a.json.20260101-000000.000000001.backup",
		"a.json.20260101-000000.000000002.backup",
		"a.json.20260101-000000.000000003.backup",
		"b.json.20260101-000000.000000001.backup",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(backupDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writer := NewAtomicWriter(backupDir)
	if err := writer.CleanupBackups(0, 2); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	remaining, _ := filepath.Glob(filepath.Join(backupDir, "*.backup"))
	if len(remaining) != 3 {
		t.Fatalf("Expected 3 backups to remain, got %d: %v", len(remaining), remaining)
	}
	if _, err := os.Stat(filepath.Join(backupDir, names[0])); !os.IsNotExist(err) {
		t.Error("Expected the oldest backup of a.json to be removed")
	}

	old := time.Now().Add(-48 * time.Hour)
	for _, path := range remaining {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.CleanupBackups(24*time.Hour, 0); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	remaining, _ = filepath.Glob(filepath.Join(backupDir, "*.backup"))
	if len(remaining) != 0 {
		t.Errorf("Expected expired backups to be removed, got %v", remaining)
	}
}

func BenchmarkAtomicWriter_WriteFile(b *testing.B) {
	tempDir := b.TempDir()
	writer := NewAtomicWriter("")
	testFile := filepath.Join(tempDir, "bench.json")
	data := []byte(`{"id":"bench","resources":{}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writer.WriteFile(testFile, data, 0o644); err != nil {
			b.Fatal(err)
		}
	}
}

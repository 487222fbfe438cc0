package database

import "testing"

// TestMigrationFiles tests that embedded migrations are found in order
func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(files) == 0 {
		t.Fatal("Expected at least one migration")
	}
	if files[0] != "001_directory.sql" {
		t.Errorf("Expected 001_directory.sql first, got %s", files[0])
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("Expected sorted files, got %v", files)
		}
	}
}

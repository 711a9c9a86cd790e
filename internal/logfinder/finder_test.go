package logfinder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func evalDir(t *testing.T, dir string) string {
	t.Helper()
	// Resolve symlinks in expected path for comparison (e.g., /var -> /private/var on macOS)
	want, _ := filepath.EvalSymlinks(dir)
	if want == "" {
		want = dir
	}
	return want
}

func TestListLogFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "logbackups"), 0755); err != nil {
		t.Fatal(err)
	}

	// Oldest first: two backups, then the live log.
	files := []string{
		filepath.Join("logbackups", "Game Build(9000000) 01 Jan 25 (10 00 00).log"),
		filepath.Join("logbackups", "Game Build(9000000) 02 Jan 25 (10 00 00).log"),
		"Game.log",
	}
	for i, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatal(err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatal(err)
		}
	}
	// Not a game log.
	if err := os.WriteFile(filepath.Join(dir, "launcher.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles() error = %v", err)
	}
	if len(got) != len(files) {
		t.Fatalf("ListLogFiles() = %v, want %d files", got, len(files))
	}
	for i, name := range files {
		if !strings.HasSuffix(got[i], name) {
			t.Errorf("ListLogFiles()[%d] = %s, want suffix %s", i, got[i], name)
		}
	}

	latest, err := FindLatestLogFile(dir)
	if err != nil {
		t.Fatalf("FindLatestLogFile() error = %v", err)
	}
	if filepath.Base(latest) != "Game.log" {
		t.Errorf("FindLatestLogFile() = %v, want Game.log", latest)
	}
}

func TestFindLatestLogFile_NoFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := FindLatestLogFile(dir)
	if err == nil {
		t.Error("FindLatestLogFile() expected error for empty directory")
	}
	if !errors.Is(err, ErrNoLogFiles) {
		t.Errorf("FindLatestLogFile() error = %v, want %v", err, ErrNoLogFiles)
	}
}

func TestResolveLogPath(t *testing.T) {
	dir := t.TempDir()
	wantDir := evalDir(t, dir)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"directory gets Game.log", dir, filepath.Join(wantDir, "Game.log"), nil},
		{"log file kept", filepath.Join(dir, "Custom.log"), filepath.Join(wantDir, "Custom.log"), nil},
		{"uppercase extension", filepath.Join(dir, "GAME.LOG"), filepath.Join(wantDir, "GAME.LOG"), nil},
		{"wrong extension", filepath.Join(dir, "Game.txt"), "", ErrNotLogFile},
		{"empty", "  ", "", ErrLogNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLogPath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ResolveLogPath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveLogPath(%q) error = %v", tt.input, err)
			}
			// Nonexistent files are not symlink-resolved; compare by base and dir.
			if filepath.Base(got) != filepath.Base(tt.want) {
				t.Errorf("ResolveLogPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindLogPath_Priority(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "Env.log")
	t.Setenv(EnvLogPath, envFile)

	got, err := FindLogPath("")
	if err != nil {
		t.Fatalf("FindLogPath() error = %v", err)
	}
	if filepath.Base(got) != "Env.log" {
		t.Errorf("FindLogPath() = %v, want env path", got)
	}

	// Explicit should take priority over env
	got, err = FindLogPath(filepath.Join(dir, "Explicit.log"))
	if err != nil {
		t.Fatalf("FindLogPath(explicit) error = %v", err)
	}
	if filepath.Base(got) != "Explicit.log" {
		t.Errorf("FindLogPath(explicit) = %v", got)
	}

	t.Setenv(EnvLogPath, filepath.Join(dir, "notes.txt"))
	if _, err := FindLogPath(""); !errors.Is(err, ErrNotLogFile) {
		t.Errorf("FindLogPath() with bad env error = %v, want ErrNotLogFile", err)
	}
}

func TestFindLogPath_Default(t *testing.T) {
	local := t.TempDir()
	t.Setenv(EnvLogPath, "")
	t.Setenv("LOCALAPPDATA", local)
	t.Setenv("ProgramFiles", filepath.Join(t.TempDir(), "pf"))

	got, err := FindLogPath("")
	if err != nil {
		t.Fatalf("FindLogPath() error = %v", err)
	}
	want := filepath.Join(local, "StarCitizen", "Game.log")
	if got != want {
		t.Errorf("FindLogPath() = %v, want %v", got, want)
	}
	if DefaultLogPath() != want {
		t.Errorf("DefaultLogPath() = %v, want %v", DefaultLogPath(), want)
	}
}

func TestFindLogPath_NoEnvironment(t *testing.T) {
	t.Setenv(EnvLogPath, "")
	t.Setenv("LOCALAPPDATA", "")
	t.Setenv("USERPROFILE", "")
	t.Setenv("ProgramFiles", "")

	if _, err := FindLogPath(""); !errors.Is(err, ErrLogNotFound) {
		t.Errorf("FindLogPath() error = %v, want ErrLogNotFound", err)
	}
}

func TestFindLogDir_EnvVar(t *testing.T) {
	// Create temp directory with log file
	dir := t.TempDir()
	logFile := filepath.Join(dir, "Game.log")
	if err := os.WriteFile(logFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	// The env var may name the file itself.
	t.Setenv(EnvLogPath, logFile)

	got, err := FindLogDir("")
	if err != nil {
		t.Fatalf("FindLogDir() error = %v", err)
	}
	if want := evalDir(t, dir); got != want {
		t.Errorf("FindLogDir() = %v, want %v", got, want)
	}
}

func TestFindLogDir_Explicit(t *testing.T) {
	// Create temp directory with log file
	dir := t.TempDir()
	logFile := filepath.Join(dir, "Game.log")
	if err := os.WriteFile(logFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	// Explicit should take priority over env
	t.Setenv(EnvLogPath, "/some/other/path")

	got, err := FindLogDir(dir)
	if err != nil {
		t.Fatalf("FindLogDir() error = %v", err)
	}
	if want := evalDir(t, dir); got != want {
		t.Errorf("FindLogDir() = %v, want %v", got, want)
	}
}

func TestFindLogDir_ExplicitInvalid(t *testing.T) {
	_, err := FindLogDir("/nonexistent/path")
	if err == nil {
		t.Error("FindLogDir() expected error for invalid explicit path")
	}
	if !errors.Is(err, ErrLogDirNotFound) {
		t.Errorf("FindLogDir() error = %v, want %v", err, ErrLogDirNotFound)
	}
}

func TestFindLogDir_EnvVarInvalid(t *testing.T) {
	// Set environment variable to invalid path
	t.Setenv(EnvLogPath, "/nonexistent/path")

	_, err := FindLogDir("")
	if err == nil {
		t.Error("FindLogDir() expected error for invalid env var path")
	}
	if !errors.Is(err, ErrLogDirNotFound) {
		t.Errorf("FindLogDir() error = %v, want %v", err, ErrLogDirNotFound)
	}
}

func TestResolveAndValidateLogDir(t *testing.T) {
	// Backups alone are enough.
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "logbackups"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logbackups", "Game-old.log"), []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	resolved := resolveAndValidateLogDir(dir)
	if resolved == "" {
		t.Error("resolveAndValidateLogDir() = empty, want non-empty for valid dir")
	}
}

func TestResolveAndValidateLogDir_Empty(t *testing.T) {
	dir := t.TempDir()

	resolved := resolveAndValidateLogDir(dir)
	if resolved != "" {
		t.Error("resolveAndValidateLogDir() = non-empty, want empty for dir without log files")
	}
}

func TestResolveAndValidateLogDir_NotExists(t *testing.T) {
	resolved := resolveAndValidateLogDir("/nonexistent/path")
	if resolved != "" {
		t.Error("resolveAndValidateLogDir() = non-empty, want empty for nonexistent path")
	}
}

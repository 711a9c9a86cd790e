// Package logfinder locates Star Citizen Game.log files.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnvLogPath is the environment variable name for specifying the log file or directory.
const EnvLogPath = "KILLFEED_SETTINGS_GAME_LOG_PATH"

// LogFileName is the name of the live log the game writes.
const LogFileName = "Game.log"

// backupDir holds the rotated logs of previous sessions.
const backupDir = "logbackups"

// Sentinel errors.
var (
	ErrLogNotFound    = errors.New("log file location unknown")
	ErrNotLogFile     = errors.New("path is not a .log file")
	ErrLogDirNotFound = errors.New("log directory not found")
	ErrNoLogFiles     = errors.New("no log files found")
)

// DefaultLogPaths returns candidate Game.log paths in priority order.
// The first entry is the configured default even when it does not exist.
func DefaultLogPaths() []string {
	var paths []string

	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		// Fallback: try to construct from USERPROFILE
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			localAppData = filepath.Join(userProfile, "AppData", "Local")
		}
	}
	if localAppData != "" {
		paths = append(paths, filepath.Join(localAppData, "StarCitizen", LogFileName))
	}

	programFiles := os.Getenv("ProgramFiles")
	if programFiles == "" && len(paths) > 0 {
		programFiles = `C:\Program Files`
	}
	if programFiles != "" {
		root := filepath.Join(programFiles, "Roberts Space Industries", "StarCitizen")
		for _, channel := range []string{"LIVE", "PTU", "EPTU"} {
			paths = append(paths, filepath.Join(root, channel, LogFileName))
		}
	}
	return paths
}

// DefaultLogPath returns the default Game.log location, or "" if it cannot
// be derived from the environment.
func DefaultLogPath() string {
	if paths := DefaultLogPaths(); len(paths) > 0 {
		return paths[0]
	}
	return ""
}

// ResolveLogPath normalizes a configured log location.
// A directory resolves to the Game.log inside it; anything else must end in
// ".log". The file itself does not need to exist.
func ResolveLogPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrLogNotFound
	}
	p = os.ExpandEnv(p)

	if info, err := os.Stat(p); err == nil && info.IsDir() {
		p = filepath.Join(p, LogFileName)
	} else if !strings.EqualFold(filepath.Ext(p), ".log") {
		return "", fmt.Errorf("%w: %s", ErrNotLogFile, p)
	}

	// Resolve symlinks (works with Windows Junctions in Go 1.20+)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p), nil
}

// FindLogPath returns the Game.log path to follow.
//
// Priority:
//  1. explicit (if non-empty)
//  2. KILLFEED_SETTINGS_GAME_LOG_PATH environment variable
//  3. the first existing entry of DefaultLogPaths()
//  4. the first entry of DefaultLogPaths(), which may appear later
//
// Returns ErrLogNotFound if no location can be derived.
func FindLogPath(explicit string) (string, error) {
	if explicit != "" {
		return ResolveLogPath(explicit)
	}
	if env := os.Getenv(EnvLogPath); env != "" {
		p, err := ResolveLogPath(env)
		if err != nil {
			return "", fmt.Errorf("%s: %w", EnvLogPath, err)
		}
		return p, nil
	}

	candidates := DefaultLogPaths()
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return ResolveLogPath(p)
		}
	}
	if len(candidates) == 0 {
		return "", ErrLogNotFound
	}
	return candidates[0], nil
}

// FindLogDir returns the directory holding Game.log and its backups.
//
// Priority:
//  1. explicit (if non-empty)
//  2. the directory of the KILLFEED_SETTINGS_GAME_LOG_PATH file
//  3. Auto-detect from DefaultLogPaths()
//
// Returns ErrLogDirNotFound if no directory with log files is found.
// The returned path has symlinks resolved for consistency.
func FindLogDir(explicit string) (string, error) {
	// 1. Check explicit
	if explicit != "" {
		if resolved := resolveAndValidateLogDir(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: specified directory is invalid or contains no log files", ErrLogDirNotFound)
	}

	// 2. Check environment variable
	if env := os.Getenv(EnvLogPath); env != "" {
		dir := env
		if strings.EqualFold(filepath.Ext(env), ".log") {
			dir = filepath.Dir(env)
		}
		if resolved := resolveAndValidateLogDir(dir); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to invalid directory", ErrLogDirNotFound, EnvLogPath)
	}

	// 3. Auto-detect
	for _, p := range DefaultLogPaths() {
		if resolved := resolveAndValidateLogDir(filepath.Dir(p)); resolved != "" {
			return resolved, nil
		}
	}

	return "", ErrLogDirNotFound
}

// ListLogFiles returns the live log and every backup in dir, sorted by
// modification time (oldest first).
//
// Returns ErrNoLogFiles if there are none.
func ListLogFiles(dir string) ([]string, error) {
	matches, err := globLogs(dir)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoLogFiles
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	files := make([]fileInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue // Skip files we can't stat
		}
		files = append(files, fileInfo{path: path, modTime: info.ModTime().UnixNano()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime < files[j].modTime
	})

	result := make([]string, len(files))
	for i, f := range files {
		result[i] = f.path
	}
	return result, nil
}

// FindLatestLogFile returns the most recently modified log in dir.
//
// Returns ErrNoLogFiles if no log files are found.
func FindLatestLogFile(dir string) (string, error) {
	files, err := ListLogFiles(dir)
	if err != nil {
		return "", err
	}
	return files[len(files)-1], nil
}

func globLogs(dir string) ([]string, error) {
	var matches []string
	for _, pattern := range []string{
		filepath.Join(dir, "Game*.log"),
		filepath.Join(dir, backupDir, "Game*.log"),
	} {
		m, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing log files: %w", err)
		}
		matches = append(matches, m...)
	}
	return matches, nil
}

// resolveAndValidateLogDir resolves symlinks and validates the directory.
// Returns the resolved path if valid, empty string otherwise.
func resolveAndValidateLogDir(dir string) string {
	// First check if path exists
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}

	// Resolve symlinks (works with Windows Junctions in Go 1.20+)
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Fallback to original path if symlink resolution fails
		// (e.g., permission issues, broken links)
		resolved = dir
	}

	// Check for log files in resolved path
	matches, err := globLogs(resolved)
	if err != nil || len(matches) == 0 {
		return ""
	}

	return resolved
}

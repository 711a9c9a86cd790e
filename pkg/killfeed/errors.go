package killfeed

import (
	"fmt"

	"github.com/killfeedsc/killfeed-go/internal/logfinder"
)

// Sentinel errors returned by this package.
var (
	// ErrLogNotFound is returned when no Game.log location can be determined.
	ErrLogNotFound = logfinder.ErrLogNotFound

	// ErrNotLogFile is returned for a path that is neither a directory nor a .log file.
	ErrNotLogFile = logfinder.ErrNotLogFile

	// ErrLogDirNotFound is returned when the log directory
	// cannot be found or accessed.
	ErrLogDirNotFound = logfinder.ErrLogDirNotFound

	// ErrNoLogFiles is returned when no log files are found
	// in the specified directory.
	ErrNoLogFiles = logfinder.ErrNoLogFiles
)

// ParseError reports a read failure at a specific line of a log file.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/hdltools/svls/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// StdioMode tracks if the server owns stdout for the protocol (set by main).
// When enabled, all debug output must go to a file or be dropped.
var StdioMode = false

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetStdioMode enables stdio mode which suppresses debug output to stderr
func SetStdioMode(enabled bool) {
	StdioMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "svls-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("svls-%d.log", os.Getpid()))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open debug log file: %w", err)
	}

	debugFile = f
	debugOutput = f
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		debugFile.Close()
		debugFile = nil
		debugOutput = nil
	}
}

// Enabled reports whether debug logging is active.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	return os.Getenv("SVLS_DEBUG") != ""
}

func logf(category, format string, args ...interface{}) {
	if !Enabled() {
		return
	}

	debugMutex.Lock()
	defer debugMutex.Unlock()

	w := debugOutput
	if w == nil {
		if StdioMode {
			return
		}
		w = os.Stderr
	}

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %s: %s\n", ts, category, fmt.Sprintf(format, args...))
}

// LogIndexing logs workspace indexing activity.
func LogIndexing(format string, args ...interface{}) {
	logf("INDEX", format, args...)
}

// LogCompilation logs elaboration and analysis activity.
func LogCompilation(format string, args ...interface{}) {
	logf("COMP", format, args...)
}

// LogServer logs request dispatch and document lifecycle activity.
func LogServer(format string, args ...interface{}) {
	logf("SERVER", format, args...)
}

// LogWcp logs waveform viewer protocol activity.
func LogWcp(format string, args ...interface{}) {
	logf("WCP", format, args...)
}

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// DebugLog is nil unless debug logging is enabled; call sites guard with a
// nil check.
var DebugLog *log.Logger

// InitDebugLog opens the debug log file under dataDir. A failure disables
// debug logging rather than failing startup.
func InitDebugLog(dataDir string) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug log unavailable: %v\n", err)
		return
	}
	DebugLog = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
}

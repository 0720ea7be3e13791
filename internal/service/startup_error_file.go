package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFile is the file name written by WriteStartupErrorFile.
const StartupErrorFile = "startup-error.log"

// WriteStartupErrorFile records why the controller failed to start, for
// cases where logging was never initialised. Only the latest error is kept.
func WriteStartupErrorFile(logDir string, err error) {
	_ = os.MkdirAll(logDir, 0755)

	f, ferr := os.Create(filepath.Join(logDir, StartupErrorFile))
	if ferr != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s] STARTUP ERROR\n%v\n", time.Now().Format("2006-01-02 15:04:05"), err)
}

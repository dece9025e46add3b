package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sessionStamp formats the session start in log file names.
const sessionStamp = "20060102_150405"

// OpenSessionLog creates dir if needed and opens the log file for a
// session started at start, named "<app>.<stamp>.log". A file left by an
// earlier session with the same name is kept as "<name>.old".
func OpenSessionLog(dir, app string, start time.Time) (*os.File, string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.log", app, start.Format(sessionStamp)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, path, fmt.Errorf("creating logs directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, path, fmt.Errorf("keeping previous log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, path, fmt.Errorf("opening log file: %w", err)
	}
	return f, path, nil
}

package handler

import (
	"fmt"
	"log"
	"os"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

// newFileLog builds a handler that appends every record to a file as
// `TIMESTAMP: message` lines and closes the file at end-of-stream.
//
// Options:
//
//	path (required): file to append to; created if missing.
func newFileLog(_ Deps, opts Options) (func(logparse.Record), error) {
	path := opts["path"]
	if path == "" {
		return nil, fmt.Errorf("filelog: option %q is required", "path")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("filelog: %w", err)
	}

	return func(rec logparse.Record) {
		if rec.EndOfStream() {
			if err := f.Close(); err != nil {
				log.Printf("filelog: close failed: %v", err)
			}
			return
		}

		line := fmt.Sprintf("%s: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Message)
		if _, err := f.WriteString(line); err != nil {
			log.Printf("filelog: write failed: %v", err)
		}
	}, nil
}

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

const (
	fileSinkDirPermissions  = 0750
	fileSinkFilePermissions = 0600
)

// FileSink appends each record as one JSON Lines entry to a single
// append-only log file, in the order Append is called.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (creating if needed) the audit log file at path for
// append.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), fileSinkDirPermissions); err != nil {
		return nil, ctxerr.New("audit", "NewFileSink", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileSinkFilePermissions) //nolint:gosec // path is operator-configured
	if err != nil {
		return nil, ctxerr.New("audit", "NewFileSink", err)
	}
	return &FileSink{f: f}, nil
}

// Append writes rec as one JSON line. It does not fsync on every call; the
// chain writer is the only caller and already runs off the request path.
func (s *FileSink) Append(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return ctxerr.New("audit", "FileSink.Append", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(data); err != nil {
		return ctxerr.New("audit", "FileSink.Append", err)
	}
	return nil
}

// Export streams every record appended after the one whose SelfHash equals
// since (exclusive), as newline-delimited JSON, to w. An empty since
// streams the whole log from the genesis record. Export opens its own
// read handle on the same path Append writes to, so it observes records
// written before the call started without coordinating with the writer
// (spec SPEC_FULL.md §12 item 5, "GET /admin/audit/export?since=<hash>").
func (s *FileSink) Export(_ context.Context, since string, w io.Writer) error {
	f, err := os.Open(s.f.Name())
	if err != nil {
		return ctxerr.New("audit", "FileSink.Export", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8<<20)

	skipping := since != ""
	for scanner.Scan() {
		line := scanner.Text()
		if skipping {
			if strings.Contains(line, `"self_hash":"`+since+`"`) {
				skipping = false
			}
			continue
		}
		if _, err := w.Write([]byte(line)); err != nil {
			return ctxerr.New("audit", "FileSink.Export", err)
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return ctxerr.New("audit", "FileSink.Export", err)
		}
	}
	return scanner.Err()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		return err
	}
	return s.f.Close()
}

var _ Sink = (*FileSink)(nil)

package hook

import (
	"bufio"
	"bytes"
	"encoding/json"
	"time"

	"github.com/nlsh-dev/nlsh/internal/errors"
)

// Entry is one recorded shell command from the history log.
type Entry struct {
	Command string    `json:"cmd"`
	Exit    int       `json:"exit"`
	Time    time.Time `json:"time"`
}

// ReadHistory returns up to limit most recent entries from the hook's
// history log, oldest first. A missing log yields no entries; malformed
// lines are skipped rather than failing the whole read since the log is
// appended to by shell code with no locking.
func ReadHistory(medium Medium, logPath string, limit int) ([]Entry, error) {
	if logPath == "" {
		logPath = DefaultLogPath
	}
	data, exists, err := medium.ReadFile(medium.Expand(logPath))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHook, "failed to read history log", "")
	}
	if !exists {
		return nil, nil
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.Command == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// FormatHistory renders entries as plain "command" lines for inclusion in
// a proposal request, oldest first.
func FormatHistory(entries []Entry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.Command)
	}
	return lines
}

// Package toolserver implements the consumer side of the mock tool server's
// logging contract: the server appends one JSON object per tool invocation to
// a file named by an environment variable, and this package reads it back.
package toolserver

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
)

// LogEnvVar names the environment variable the tool server reads to locate
// its append-only call log.
const LogEnvVar = "GAUNTLET_TOOL_LOG"

// logFileName is the log's conventional location inside a working directory.
const logFileName = "tool-calls.jsonl"

// Call is one logged tool invocation.
type Call struct {
	Timestamp string         `json:"ts"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Result    string         `json:"result,omitempty"`
}

// LogPath returns the call-log path for a working directory.
func LogPath(workDir string) string {
	return filepath.Join(workDir, logFileName)
}

// ReadLog parses the call log at path. A missing file yields an empty slice:
// the server only creates the log once a tool is invoked. Malformed lines are
// skipped rather than failing the read, since a crashing server can leave a
// truncated final line.
func ReadLog(path string) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var calls []Call
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		calls = append(calls, c)
	}
	if err := scanner.Err(); err != nil {
		return calls, err
	}
	return calls, nil
}

// CountCalls returns the number of valid log lines. One line per call, so
// the count doubles as the tool-call count for usage metrics.
func CountCalls(path string) int {
	calls, err := ReadLog(path)
	if err != nil {
		return 0
	}
	return len(calls)
}

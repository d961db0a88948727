// Package cache provides content-addressable caching of pair results.
//
// A cache key is derived from every input that could change a result:
// scenario content, model identity, runner configuration, the runner binary
// bytes, and the auxiliary tool-server binary. Entries are valid forever
// unless one of those inputs changes or the archived transcript vanishes;
// there is no time-based invalidation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/wesamahakem/gauntlet/internal/models"
)

const (
	// formatVersion is bumped whenever the index layout changes; a
	// mismatch discards the whole index rather than migrating.
	formatVersion = 1

	// shortHashLen truncates component digests for readability.
	shortHashLen = 12

	indexFileName = "index.json"
	logsDirName   = "logs"

	// hashUnknown is the sentinel used when a binary can be neither read
	// nor invoked. Key computation never fails outright; it just gets
	// coarser.
	hashUnknown = "unknown"

	// binaryHashCacheSize bounds the per-process memo of binary content
	// hashes. Runners reuse the same few binaries, so this stays tiny.
	binaryHashCacheSize = 64
)

// Entry is one cached result plus the inputs that produced its key, kept for
// auditability.
type Entry struct {
	Timestamp  time.Time        `json:"timestamp"`
	Inputs     models.KeyInputs `json:"inputs"`
	Result     models.RunResult `json:"result"`
	Transcript string           `json:"transcript"`
}

type indexFile struct {
	FormatVersion int              `json:"format_version"`
	Entries       map[string]Entry `json:"entries"`
}

// Cache maps deterministic keys to previously computed results and their
// archived transcripts. A single logical thread owns it; the mutex only
// guards against accidental concurrent CLI use.
type Cache struct {
	dir string

	mu      sync.Mutex
	entries map[string]Entry

	binHashes *lru.Cache[string, string]
}

// New opens (or initializes) the cache rooted at dir. A corrupt or
// version-mismatched index is discarded, not migrated.
func New(dir string) (*Cache, error) {
	binHashes, err := lru.New[string, string](binaryHashCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:       dir,
		entries:   map[string]Entry{},
		binHashes: binHashes,
	}
	c.loadIndex()
	return c, nil
}

func (c *Cache) loadIndex() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFileName))
	if err != nil {
		return
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] discarding unreadable cache index: %v\n", err)
		return
	}
	if idx.FormatVersion != formatVersion {
		fmt.Fprintf(os.Stderr, "[WARN] cache index format %d != %d, discarding\n", idx.FormatVersion, formatVersion)
		return
	}
	if idx.Entries != nil {
		c.entries = idx.Entries
	}
}

// persistIndex writes the index after every mutation. The write
// amplification is deliberate: an operator interrupt must never lose
// completed results.
func (c *Cache) persistIndex() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(indexFile{FormatVersion: formatVersion, Entries: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, indexFileName), data, 0644); err != nil {
		return fmt.Errorf("writing cache index: %w", err)
	}
	return nil
}

// ComputeKey derives the cache key and its component inputs for a pair.
// It never fails: unreadable binaries degrade to version-output hashes and
// finally to a fixed sentinel.
func (c *Cache) ComputeKey(pair models.TestPair) (string, models.KeyInputs) {
	inputs := models.KeyInputs{
		ScenarioHash:     hashCanonical(pair.Scenario),
		ModelKey:         pair.Model.Key(),
		RunnerConfigHash: hashCanonical(pair.Runner),
		RunnerBinaryHash: c.hashBinary(pair.Runner.Binary),
		ToolServerHash:   c.hashToolServers(pair.Runner.ToolServers),
	}

	// The combined key hashes the five components in fixed order with NUL
	// delimiters to prevent boundary collisions.
	h := sha256.New()
	for _, part := range []string{
		inputs.ScenarioHash,
		inputs.ModelKey,
		inputs.RunnerConfigHash,
		inputs.RunnerBinaryHash,
		inputs.ToolServerHash,
	} {
		h.Write([]byte(part + "\x00"))
	}

	return hex.EncodeToString(h.Sum(nil))[:2*shortHashLen], inputs
}

// hashCanonical hashes a value's RFC 8785 canonical JSON form, so field
// ordering in Go never perturbs the digest.
func hashCanonical(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return hashUnknown
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:shortHashLen]
}

// hashBinary content-hashes the executable at path, falling back to hashing
// its --version output, then to the unknown sentinel. Results are memoized
// per path for the life of the process.
func (c *Cache) hashBinary(path string) string {
	if path == "" {
		return hashUnknown
	}
	if cached, ok := c.binHashes.Get(path); ok {
		return cached
	}

	hash := hashFileContents(resolveBinary(path))
	if hash == "" {
		hash = hashVersionOutput(path)
	}
	if hash == "" {
		hash = hashUnknown
	}

	c.binHashes.Add(path, hash)
	return hash
}

func resolveBinary(path string) string {
	if strings.ContainsRune(path, os.PathSeparator) {
		return path
	}
	if resolved, err := exec.LookPath(path); err == nil {
		return resolved
	}
	return path
}

func hashFileContents(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))[:shortHashLen]
}

func hashVersionOutput(path string) string {
	out, err := exec.Command(path, "--version").CombinedOutput() //nolint:gosec
	if err != nil || len(out) == 0 {
		return ""
	}
	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:])[:shortHashLen]
}

// hashToolServers hashes the binaries referenced by the runner's tool-server
// launch commands: for each command, the last argument that resolves to an
// existing file is content-hashed. Commands with no resolvable file
// contribute the sentinel.
func (c *Cache) hashToolServers(commands []string) string {
	if len(commands) == 0 {
		return hashUnknown
	}

	parts := make([]string, 0, len(commands))
	for _, command := range commands {
		path := lastPathArg(command)
		if path == "" {
			parts = append(parts, hashUnknown)
			continue
		}
		if cached, ok := c.binHashes.Get(path); ok {
			parts = append(parts, cached)
			continue
		}
		hash := hashFileContents(path)
		if hash == "" {
			hash = hashUnknown
		}
		c.binHashes.Add(path, hash)
		parts = append(parts, hash)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])[:shortHashLen]
}

// lastPathArg returns the last whitespace-separated token of a command line
// that names an existing file.
func lastPathArg(command string) string {
	fields := strings.Fields(command)
	for i := len(fields) - 1; i >= 0; i-- {
		if info, err := os.Stat(fields[i]); err == nil && !info.IsDir() {
			return fields[i]
		}
	}
	return ""
}

// Lookup returns the cached result for key, if usable. An entry whose
// archived transcript has vanished is evicted and reported as a miss, so
// externally deleted logs never produce dangling references.
func (c *Cache) Lookup(key string) (models.RunResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return models.RunResult{}, false
	}

	archive := c.archivePath(entry.Transcript)
	if _, err := os.Stat(archive); err != nil {
		delete(c.entries, key)
		if err := c.persistIndex(); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] evicting stale cache entry: %v\n", err)
		}
		return models.RunResult{}, false
	}

	result := entry.Result
	result.Cached = true
	result.TranscriptPath = archive
	return result, true
}

// Store archives the transcript and records the entry, flushing the index
// immediately.
func (c *Cache) Store(key string, inputs models.KeyInputs, result models.RunResult, transcriptText string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logsDir := filepath.Join(c.dir, logsDirName)
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating cache logs directory: %w", err)
	}

	archiveName := key + ".log.gz"
	if err := writeGzip(filepath.Join(logsDir, archiveName), transcriptText); err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}

	result.TranscriptPath = c.archivePath(archiveName)
	c.entries[key] = Entry{
		Timestamp:  time.Now().UTC(),
		Inputs:     inputs,
		Result:     result,
		Transcript: archiveName,
	}

	return c.persistIndex()
}

// ReadTranscript decompresses the archived transcript for key.
func (c *Cache) ReadTranscript(key string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no cache entry for key %s", key)
	}

	f, err := os.Open(c.archivePath(entry.Transcript))
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("opening transcript archive: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	data, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear deletes the index and the archived-transcript directory. It refuses
// to delete a directory that doesn't look like a gauntlet cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != logsDirName {
			return fmt.Errorf("cache directory contains unexpected subdirectory %q - refusing to delete", e.Name())
		}
		if !e.IsDir() && e.Name() != indexFileName {
			return fmt.Errorf("cache directory contains unexpected file %q - refusing to delete", e.Name())
		}
	}

	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	c.entries = map[string]Entry{}
	return nil
}

func (c *Cache) archivePath(name string) string {
	return filepath.Join(c.dir, logsDirName, name)
}

func writeGzip(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

package lifecycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/wanderlust/wanderbridge/internal/store"
)

// Boot-completion marker. The server emits one line like
// "[19Jun2025 09:41:05.638] [Server thread/INFO]: Done (58.3s)! For
// help, type "help"" when initialization finishes.
const (
	markerDone = "Done ("
	markerHelp = "For help, type"
)

const (
	// CacheFreshness is how old a cached start-time record may be
	// before it is ignored. A stale cache would report impossible
	// uptime after a log rotation, which is worse than no cache.
	CacheFreshness = 15 * time.Minute

	// maxLogFiles caps the newest-to-oldest scan for the boot marker.
	maxLogFiles = 5
)

var bootStampRe = regexp.MustCompile(`\[(\d{2}[A-Za-z]{3}\d{4}) (\d{2}:\d{2}:\d{2})\.\d+\]`)

const bootStampLayout = "02Jan2006 15:04:05"

// ResolveStartTime scans the newest log files (plain and gzip-rotated)
// for the boot-completion marker and returns its embedded timestamp.
// Files are visited newest first so the most recent boot wins. Returns
// ok=false when no marker is found in the capped set.
func ResolveStartTime(logsDir string, loc *time.Location) (time.Time, bool) {
	paths, err := recentLogFiles(logsDir)
	if err != nil {
		return time.Time{}, false
	}
	for _, path := range paths {
		if t, ok := scanLogForBoot(path, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// recentLogFiles lists *.log and *.log.gz under dir, newest modification
// first, capped to maxLogFiles.
func recentLogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading logs dir: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".log") && !strings.HasSuffix(name, ".log.gz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, name), mod: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })
	if len(files) > maxLogFiles {
		files = files[:maxLogFiles]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func scanLogForBoot(path string, loc *time.Location) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return time.Time{}, false
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, markerDone) || !strings.Contains(line, markerHelp) {
			continue
		}
		m := bootStampRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(bootStampLayout, m[1]+" "+m[2], loc)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// LoadCachedStart returns the cached start time when the record is still
// trustworthy: younger than CacheFreshness and from the same local
// calendar date as now.
func LoadCachedStart(files *store.Files, now time.Time, loc *time.Location) (time.Time, bool) {
	rec, ok, err := files.LoadStartTime()
	if err != nil || !ok {
		return time.Time{}, false
	}
	t := time.Unix(0, int64(rec.Timestamp*float64(time.Second)))
	if now.Sub(t) > CacheFreshness || now.Sub(t) < 0 {
		return time.Time{}, false
	}
	ln, lt := now.In(loc), t.In(loc)
	if ln.Year() != lt.Year() || ln.YearDay() != lt.YearDay() {
		return time.Time{}, false
	}
	return t, true
}

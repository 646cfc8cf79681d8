package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Blob is a named text file awaiting parsing.
type Blob struct {
	Name    string
	Content string
}

// Extensions accepted by LoadDir.
var scanExtensions = map[string]bool{".csv": true, ".txt": true, ".xyz": true}

// LoadDir reads every scan file in dir in scan order: by the date embedded
// in the file names when both carry one, then by the number embedded in the
// name, then by name.
func LoadDir(dir string) ([]Blob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scan folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if scanExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no scan files found in %s", dir)
	}

	sort.SliceStable(names, func(i, j int) bool {
		return scanBefore(names[i], names[j])
	})

	blobs := make([]Blob, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		blobs = append(blobs, Blob{Name: name, Content: string(data)})
	}
	return blobs, nil
}

func scanBefore(a, b string) bool {
	ta, aok := TimestampFromFileName(a)
	tb, bok := TimestampFromFileName(b)
	if aok && bok && !ta.Equal(tb) {
		return ta.Before(tb)
	}
	na, nb := extractNumber(a), extractNumber(b)
	if na != nb {
		return na < nb
	}
	return a < b
}

// extractNumber concatenates the digits of a file name, 0 when there are none
// or they overflow.
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

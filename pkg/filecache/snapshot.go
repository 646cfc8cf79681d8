package filecache

import (
	"math"
	"sort"

	"furnacewear/internal/models"
	"furnacewear/pkg/colormap"
)

// Snapshot is an immutable set of parsed files. Callers must not modify the
// returned files.
type Snapshot struct {
	files  map[string]*models.ParsedFile
	names  []string
	global colormap.GlobalRange
}

// NewSnapshot indexes files by name; a later file replaces an earlier one
// with the same name.
func NewSnapshot(files ...*models.ParsedFile) *Snapshot {
	m := make(map[string]*models.ParsedFile, len(files))
	for _, f := range files {
		if f != nil {
			m[f.Name] = f
		}
	}
	return newSnapshot(m)
}

func newSnapshot(files map[string]*models.ParsedFile) *Snapshot {
	s := &Snapshot{files: files, names: make([]string, 0, len(files))}
	lo, hi := math.Inf(1), math.Inf(-1)
	for name, f := range files {
		s.names = append(s.names, name)
		lo = math.Min(lo, f.MinThickness)
		hi = math.Max(hi, f.MaxThickness)
	}
	sort.Strings(s.names)
	if len(files) > 0 {
		s.global = colormap.GlobalRange{Min: lo, Max: hi, Initialized: true}
	}
	return s
}

// Get returns the named file. A missing name is not an error.
func (s *Snapshot) Get(name string) (*models.ParsedFile, bool) {
	f, ok := s.files[name]
	return f, ok
}

// Names returns the file names in sorted order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of files.
func (s *Snapshot) Len() int { return len(s.files) }

// GlobalRange returns the thickness range across all files. It is not
// initialized when the snapshot is empty.
func (s *Snapshot) GlobalRange() colormap.GlobalRange { return s.global }

// Summaries returns the metadata of every file in name order.
func (s *Snapshot) Summaries() []models.Summary {
	out := make([]models.Summary, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.files[name].Summary())
	}
	return out
}

// with returns a copy of the snapshot with one file added or replaced.
func (s *Snapshot) with(f *models.ParsedFile) *Snapshot {
	m := make(map[string]*models.ParsedFile, len(s.files)+1)
	for k, v := range s.files {
		m[k] = v
	}
	m[f.Name] = f
	return newSnapshot(m)
}

// without returns a copy of the snapshot with one file removed.
func (s *Snapshot) without(name string) *Snapshot {
	m := make(map[string]*models.ParsedFile, len(s.files))
	for k, v := range s.files {
		if k != name {
			m[k] = v
		}
	}
	return newSnapshot(m)
}

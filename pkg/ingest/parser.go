// Package ingest turns delimited scan text into sample points.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"furnacewear/internal/models"
)

// ThicknessSource selects how a point's thickness is derived.
type ThicknessSource string

const (
	// ThicknessAuto uses the thickness column, then reflectivity, then distance
	ThicknessAuto         ThicknessSource = "auto"
	ThicknessColumn       ThicknessSource = "column"
	ThicknessReflectivity ThicknessSource = "reflectivity"
	ThicknessDistance     ThicknessSource = "distance"
	ThicknessZ            ThicknessSource = "z"
)

// DefaultReflectivityDivisor converts raw reflectivity into centimeters.
const DefaultReflectivityDivisor = 10.0

// Options controls how one file is parsed.
type Options struct {
	// FileName keys the parsed record and is used to infer a timestamp
	FileName string

	// FurnaceID is stamped on every point, DefaultFurnaceID when empty
	FurnaceID string

	ThicknessSource ThicknessSource

	// ReflectivityDivisor defaults to DefaultReflectivityDivisor when zero
	ReflectivityDivisor float64

	// Scale, when positive, divides every coordinate instead of inferring a
	// per-row factor from the coordinate magnitude
	Scale float64

	Logger *slog.Logger
}

// ParseThicknessSource validates a configured thickness source name.
func ParseThicknessSource(s string) (ThicknessSource, error) {
	switch src := ThicknessSource(strings.ToLower(strings.TrimSpace(s))); src {
	case "":
		return ThicknessAuto, nil
	case ThicknessAuto, ThicknessColumn, ThicknessReflectivity, ThicknessDistance, ThicknessZ:
		return src, nil
	default:
		return "", fmt.Errorf("unknown thickness source %q", s)
	}
}

const (
	colX            = "x"
	colY            = "y"
	colZ            = "z"
	colTimestamp    = "timestamp"
	colReflectivity = "reflectivity"
	colTag          = "tag"
	colThickness    = "thickness"
)

// layout holds resolved column indices, -1 when absent.
type layout struct {
	x, y, z      int
	timestamp    int
	reflectivity int
	tag          int
	thickness    int
}

func headerlessLayout() layout {
	return layout{x: 0, y: 1, z: 2, timestamp: -1, reflectivity: -1, tag: -1, thickness: -1}
}

func resolveHeader(fileName string, header []string) (layout, error) {
	l := layout{x: -1, y: -1, z: -1, timestamp: -1, reflectivity: -1, tag: -1, thickness: -1}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		var slot *int
		switch name {
		case colX:
			slot = &l.x
		case colY:
			slot = &l.y
		case colZ:
			slot = &l.z
		case colTimestamp:
			slot = &l.timestamp
		case colReflectivity:
			slot = &l.reflectivity
		case colTag:
			slot = &l.tag
		case colThickness:
			slot = &l.thickness
		default:
			continue
		}
		if *slot < 0 {
			*slot = i
		}
	}

	var missing []string
	if l.x < 0 {
		missing = append(missing, colX)
	}
	if l.y < 0 {
		missing = append(missing, colY)
	}
	if l.z < 0 {
		missing = append(missing, colZ)
	}
	if len(missing) > 0 {
		return l, &SchemaError{File: fileName, Missing: missing, Header: header}
	}
	return l, nil
}

// knownColumns are the header names resolveHeader understands.
var knownColumns = map[string]bool{
	colX: true, colY: true, colZ: true,
	colTimestamp: true, colReflectivity: true, colTag: true, colThickness: true,
}

// isHeader reports whether the first row names a known column, or has no
// numeric token where a headerless file keeps x, y and z. A data row with a
// text tag or one corrupt coordinate stays on the data path.
func isHeader(record []string) bool {
	for _, tok := range record {
		if knownColumns[strings.ToLower(strings.TrimSpace(tok))] {
			return true
		}
	}
	for _, tok := range record[:min(3, len(record))] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(tok), 64); err == nil {
			return false
		}
	}
	return true
}

// thicknessFunc derives a thickness from a row and its raw coordinates.
type thicknessFunc func(record []string, raw [3]float64) (float64, bool)

func resolveThickness(opts Options, l layout, header []string) (thicknessFunc, int, error) {
	divisor := opts.ReflectivityDivisor
	if divisor <= 0 {
		divisor = DefaultReflectivityDivisor
	}
	fromColumn := func(idx int) thicknessFunc {
		return func(record []string, _ [3]float64) (float64, bool) {
			return parseFinite(record[idx])
		}
	}
	fromReflectivity := func(record []string, _ [3]float64) (float64, bool) {
		v, ok := parseFinite(record[l.reflectivity])
		return v / divisor, ok
	}
	distance := func(_ []string, raw [3]float64) (float64, bool) {
		return math.Sqrt(raw[0]*raw[0] + raw[1]*raw[1] + raw[2]*raw[2]), true
	}
	rawZ := func(_ []string, raw [3]float64) (float64, bool) {
		return raw[2], true
	}

	src := opts.ThicknessSource
	if src == "" {
		src = ThicknessAuto
	}
	switch src {
	case ThicknessAuto:
		if l.thickness >= 0 {
			return fromColumn(l.thickness), l.thickness, nil
		}
		if l.reflectivity >= 0 {
			return fromReflectivity, l.reflectivity, nil
		}
		return distance, -1, nil
	case ThicknessColumn:
		if l.thickness < 0 {
			return nil, -1, &SchemaError{File: opts.FileName, Missing: []string{colThickness}, Header: header}
		}
		return fromColumn(l.thickness), l.thickness, nil
	case ThicknessReflectivity:
		if l.reflectivity < 0 {
			return nil, -1, &SchemaError{File: opts.FileName, Missing: []string{colReflectivity}, Header: header}
		}
		return fromReflectivity, l.reflectivity, nil
	case ThicknessDistance:
		return distance, -1, nil
	case ThicknessZ:
		return rawZ, -1, nil
	default:
		return nil, -1, fmt.Errorf("unknown thickness source %q", src)
	}
}

func parseFinite(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// rowScale picks the divisor for one row from its largest coordinate.
func rowScale(raw [3]float64) float64 {
	m := math.Max(math.Abs(raw[0]), math.Max(math.Abs(raw[1]), math.Abs(raw[2])))
	switch {
	case m > 1000:
		return 1000
	case m > 100:
		return 100
	default:
		return 1
	}
}

// Parse reads delimited scan text and returns its points in row order.
// Rows with missing fields or non-finite values are skipped and counted.
func Parse(content string, opts Options) (*models.ParsedFile, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if strings.TrimSpace(content) == "" {
		return nil, &EmptyInputError{File: opts.FileName}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	furnaceID := opts.FurnaceID
	if furnaceID == "" {
		furnaceID = models.DefaultFurnaceID
	}
	fileTime, _ := TimestampFromFileName(opts.FileName)

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		records [][]string
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read %s: %w", opts.FileName, err)
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, &NoDataError{File: opts.FileName, Skipped: skipped}
	}

	l := headerlessLayout()
	var header []string
	if isHeader(records[0]) {
		header = records[0]
		records = records[1:]
		var err error
		if l, err = resolveHeader(opts.FileName, header); err != nil {
			return nil, err
		}
	}

	thickness, thicknessCol, err := resolveThickness(opts, l, header)
	if err != nil {
		return nil, err
	}
	required := max(l.x, l.y, l.z, thicknessCol)

	points := make([]models.SamplePoint, 0, len(records))
	values := make([]float64, 0, len(records))
	scaleCounts := make(map[float64]int)

	for i, record := range records {
		if len(record) <= required {
			skipped++
			logger.Debug("row skipped", "file", opts.FileName, "row", i+1, "reason", "missing fields")
			continue
		}
		var raw [3]float64
		ok := true
		for axis, idx := range [3]int{l.x, l.y, l.z} {
			if raw[axis], ok = parseFinite(record[idx]); !ok {
				break
			}
		}
		if !ok {
			skipped++
			logger.Debug("row skipped", "file", opts.FileName, "row", i+1, "reason", "non-finite coordinate")
			continue
		}
		t, ok := thickness(record, raw)
		if !ok {
			skipped++
			logger.Debug("row skipped", "file", opts.FileName, "row", i+1, "reason", "non-finite thickness")
			continue
		}

		scale := opts.Scale
		if scale <= 0 {
			scale = rowScale(raw)
		}
		scaleCounts[scale]++

		p := models.SamplePoint{
			Position:  [3]float64{raw[0] / scale, raw[1] / scale, raw[2] / scale},
			Thickness: t,
			FurnaceID: furnaceID,
			Timestamp: fileTime,
		}
		p.Zone = ZoneForY(p.Position[1])
		p.ProfileIndex = ProfileForX(p.Position[0])

		tag := ""
		if l.tag >= 0 && l.tag < len(record) {
			tag = record[l.tag]
		}
		p.Section = SectionFor(tag, p.Zone)

		if l.timestamp >= 0 && l.timestamp < len(record) {
			if ts, ok := ParseTimestamp(record[l.timestamp]); ok {
				p.Timestamp = ts
			}
		}

		points = append(points, p)
		values = append(values, t)
	}

	if len(points) == 0 {
		return nil, &NoDataError{File: opts.FileName, Rows: len(records), Skipped: skipped}
	}
	if skipped > 0 {
		logger.Debug("rows skipped", "file", opts.FileName, "skipped", skipped, "kept", len(points))
	}

	return &models.ParsedFile{
		Name:         opts.FileName,
		Points:       points,
		MinThickness: floats.Min(values),
		MaxThickness: floats.Max(values),
		SkippedRows:  skipped,
		ScaleFactor:  dominantScale(scaleCounts),
	}, nil
}

func dominantScale(counts map[float64]int) float64 {
	best, bestCount := 1.0, 0
	for _, s := range []float64{1, 100, 1000} {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	for s, n := range counts {
		if n > bestCount {
			best, bestCount = s, n
		}
	}
	return best
}

// ParseAt parses content and stamps the record with the ingestion time.
func ParseAt(content string, opts Options, now time.Time) (*models.ParsedFile, error) {
	f, err := Parse(content, opts)
	if err != nil {
		return nil, err
	}
	f.ParsedAt = now
	return f, nil
}

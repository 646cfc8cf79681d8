package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"furnacewear/internal/models"
)

// Zone boundaries on the normalized y axis, lowest bound first match wins
// from the top down. The lining geometry they assume is not measured.
var zoneFloors = []struct {
	floor float64
	zone  models.Zone
}{
	{4.0, models.ZoneRoof},
	{3.0, models.ZoneSlagLine},
	{2.0, models.ZoneBelly},
	{1.0, models.ZoneInitialBricks},
}

// Assumed extent of the normalized x axis that is split into profiles.
const (
	profileMinX = -5.0
	profileMaxX = 5.0
)

// ZoneForY maps a normalized y coordinate to its lining zone.
func ZoneForY(y float64) models.Zone {
	for _, z := range zoneFloors {
		if y >= z.floor {
			return z.zone
		}
	}
	return models.ZoneBottom
}

// ProfileForX maps a normalized x coordinate to a profile index in [0, ProfileCount).
func ProfileForX(x float64) int {
	span := profileMaxX - profileMinX
	idx := int(math.Floor((x - profileMinX) / span * models.ProfileCount))
	if idx < 0 {
		return 0
	}
	if idx >= models.ProfileCount {
		return models.ProfileCount - 1
	}
	return idx
}

// SectionFor resolves the section from a tag value, falling back to the zone.
func SectionFor(tag string, zone models.Zone) models.Section {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "") {
	case "bricks":
		return models.SectionBricks
	case "slagline":
		return models.SectionSlagLine
	case "slopes":
		return models.SectionSlopes
	}
	switch zone {
	case models.ZoneSlagLine:
		return models.SectionSlagLine
	case models.ZoneBottom:
		return models.SectionSlopes
	default:
		return models.SectionBricks
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102150405",
	"20060102",
}

// ParseTimestamp accepts RFC 3339, common date-time layouts and unix seconds.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}

var fileDatePattern = regexp.MustCompile(`(\d{4})[-_]?(\d{2})[-_]?(\d{2})(?:[T_ -]?(\d{2})[-:]?(\d{2})[-:]?(\d{2}))?`)

// TimestampFromFileName extracts a date, and optionally a time, embedded in
// a file name such as "scan_2024-03-18_142530.csv".
func TimestampFromFileName(name string) (time.Time, bool) {
	m := fileDatePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	year, month, day := num(m[1]), num(m[2]), num(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	hour, minute, second := 0, 0, 0
	if m[4] != "" {
		hour, minute, second = num(m[4]), num(m[5]), num(m[6])
		if hour > 23 || minute > 59 || second > 59 {
			hour, minute, second = 0, 0, 0
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

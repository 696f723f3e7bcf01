package discovery

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"storm-align-lab/internal/domain"
)

// StormTrack is one storm's parsed best-track section: its identity plus
// every fix recorded for it, in file order.
type StormTrack struct {
	Code  string // ATCF identifier, e.g. "AL092022"
	Name  string // storm name, e.g. "IAN"
	Fixes []domain.TrackFix
}

// Storm derives the population-index entry for the track.
// Returns false when the track has no fixes or its code carries an
// unrecognized basin prefix.
func (t *StormTrack) Storm() (domain.Storm, bool) {
	if len(t.Fixes) == 0 {
		return domain.Storm{}, false
	}
	basin, ok := domain.BasinFromCode(t.Code)
	if !ok {
		return domain.Storm{}, false
	}

	start, end := t.Fixes[0].Timestamp, t.Fixes[0].Timestamp
	for _, fix := range t.Fixes[1:] {
		if fix.Timestamp.Before(start) {
			start = fix.Timestamp
		}
		if fix.Timestamp.After(end) {
			end = fix.Timestamp
		}
	}

	return domain.Storm{
		Code:      t.Code,
		Name:      t.Name,
		Year:      start.Year(),
		Basin:     basin,
		StartTime: start,
		EndTime:   end,
	}, true
}

// ReachedStatus reports whether any fix carries the given system status.
func (t *StormTrack) ReachedStatus(status string) bool {
	for _, fix := range t.Fixes {
		if fix.Status == status {
			return true
		}
	}
	return false
}

// BestTrackParser parses the HURDAT2 best-track dataset format: a header
// line per storm ("AL092022, IAN, 40,") followed by that many fix lines.
// Format reference: https://www.aoml.noaa.gov/hrd/hurdat/hurdat2-format.pdf
type BestTrackParser struct{}

// NewBestTrackParser creates a new best-track dataset parser.
func NewBestTrackParser() *BestTrackParser {
	return &BestTrackParser{}
}

// The number of comma-separated fields on a fix line: timestamp pair,
// record identifier, status, position pair, intensity pair, twelve wind
// radii, and the radius of maximum winds.
const fixLineFields = 21

// Parse reads a complete dataset and groups fixes by storm. Malformed
// header or fix lines are skipped; parsing resynchronizes at the next
// valid header. Storms with no parseable fixes are dropped.
func (p *BestTrackParser) Parse(r io.Reader) ([]*StormTrack, error) {
	var tracks []*StormTrack

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		header := strings.Split(strings.ReplaceAll(sc.Text(), " ", ""), ",")
		if len(header) < 3 {
			continue
		}
		count, err := strconv.Atoi(header[2])
		if err != nil || count <= 0 {
			continue
		}

		track := &StormTrack{Code: header[0], Name: header[1]}
		for i := 0; i < count && sc.Scan(); i++ {
			fix, ok := parseFixLine(sc.Text())
			if !ok {
				continue
			}
			track.Fixes = append(track.Fixes, fix)
		}
		if len(track.Fixes) > 0 {
			tracks = append(tracks, track)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan best track dataset: %w", err)
	}

	return tracks, nil
}

// parseFixLine parses one fix line of a storm's section. Missing numeric
// values are encoded as -999 in the dataset and pass through unchanged.
func parseFixLine(line string) (domain.TrackFix, bool) {
	fields := strings.Split(strings.ReplaceAll(line, " ", ""), ",")
	if len(fields) < fixLineFields {
		return domain.TrackFix{}, false
	}

	ts, err := time.Parse("200601021504", fields[0]+fields[1])
	if err != nil {
		return domain.TrackFix{}, false
	}

	lat, ok := parseHemisphere(fields[4], 'N')
	if !ok {
		return domain.TrackFix{}, false
	}
	lon, ok := parseHemisphere(fields[5], 'E')
	if !ok {
		return domain.TrackFix{}, false
	}

	maxWind, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return domain.TrackFix{}, false
	}
	minPressure, err := strconv.ParseFloat(fields[7], 64)
	if err != nil {
		return domain.TrackFix{}, false
	}
	rmw, err := strconv.ParseFloat(fields[20], 64)
	if err != nil {
		return domain.TrackFix{}, false
	}

	return domain.TrackFix{
		Timestamp:        ts,
		Lat:              lat,
		Lon:              lon,
		Status:           fields[3],
		MaxWindKt:        maxWind,
		MinPressureMb:    minPressure,
		RadiusMaxWindNmi: rmw,
	}, true
}

// parseHemisphere converts a coordinate like "28.0N" or "94.5W" to a signed
// degree value. The positive byte names the hemisphere letter that keeps
// the sign; the opposite hemisphere negates it.
func parseHemisphere(s string, positive byte) (float64, bool) {
	if len(s) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, false
	}
	if s[len(s)-1] != positive {
		v = -v
	}
	return v, true
}

package input

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sector.balance/internal/fsutil"
	"github.com/banshee-data/sector.balance/internal/workload"
	"github.com/paulmach/orb"
)

// EventColumns names the CSV header fields read for each event. Matching is
// case-insensitive.
type EventColumns struct {
	Severity string
	Response string
	Outcome  string
	Lon      string
	Lat      string
}

// DefaultEventColumns matches the incident export the defaults were tuned
// on.
func DefaultEventColumns() EventColumns {
	return EventColumns{
		Severity: "Priority",
		Response: "Time Spent Responding",
		Outcome:  "Dispositions",
		Lon:      "lon",
		Lat:      "lat",
	}
}

// EventStats summarises an events file.
type EventStats struct {
	Rows       int
	BadNumbers int // response, lon or lat not numeric
}

// LoadEvents reads incident records. Blank response durations are marked
// missing; unparsable numbers become NaN so that scoring tallies the event
// as malformed instead of dropping it.
func LoadEvents(fs fsutil.FileSystem, path string, cols EventColumns) ([]workload.Event, EventStats, error) {
	var stats EventStats
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	col := func(name string, required bool) (int, error) {
		i, ok := index[strings.ToLower(name)]
		if !ok {
			if required {
				return -1, fmt.Errorf("%s: missing column %q", path, name)
			}
			return -1, nil
		}
		return i, nil
	}

	lonIdx, err := col(cols.Lon, true)
	if err != nil {
		return nil, stats, err
	}
	latIdx, err := col(cols.Lat, true)
	if err != nil {
		return nil, stats, err
	}
	sevIdx, _ := col(cols.Severity, false)
	respIdx, _ := col(cols.Response, false)
	outIdx, _ := col(cols.Outcome, false)

	var events []workload.Event
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		stats.Rows++

		field := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		number := func(s string) float64 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				stats.BadNumbers++
				return math.NaN()
			}
			return v
		}

		e := workload.Event{
			Severity: field(sevIdx),
			Outcome:  field(outIdx),
			Location: orb.Point{number(field(lonIdx)), number(field(latIdx))},
		}
		if s := field(respIdx); s != "" {
			e.Response, e.HasResponse = number(s), true
		}
		events = append(events, e)
	}
	return events, stats, nil
}

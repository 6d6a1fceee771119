// Package input reads the run inputs: base region polygons and street
// centerlines as GeoJSON, and incident records as CSV.
package input

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sector.balance/internal/fsutil"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultRegionProperty is the feature property holding the region id.
const DefaultRegionProperty = "Sector"

func readFeatures(fs fsutil.FileSystem, path string) (*geojson.FeatureCollection, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

// LoadRegions reads polygon and multipolygon features, in file order, with
// the region id taken from property. Ids may be JSON numbers or numeric
// strings; they must be positive integers.
func LoadRegions(fs fsutil.FileSystem, path, property string) ([]grid.Region, error) {
	if property == "" {
		property = DefaultRegionProperty
	}
	fc, err := readFeatures(fs, path)
	if err != nil {
		return nil, err
	}

	regions := make([]grid.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("%s: feature %d: unsupported geometry %T", path, i, f.Geometry)
		}
		if f.Geometry.Bound().IsEmpty() {
			return nil, fmt.Errorf("%s: feature %d: empty geometry", path, i)
		}
		id, err := regionID(f.Properties[property])
		if err != nil {
			return nil, fmt.Errorf("%s: feature %d: property %q: %w", path, i, property, err)
		}
		regions = append(regions, grid.Region{ID: id, Geometry: f.Geometry})
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("%s: no region features", path)
	}
	return regions, nil
}

func regionID(v interface{}) (int, error) {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		f = n
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%g is not a positive integer", f)
	}
	return int(f), nil
}

// LoadStreets reads every LineString and MultiLineString feature as a
// reference line, in file order. Other geometries are skipped and counted.
func LoadStreets(fs fsutil.FileSystem, path string) ([]orb.LineString, int, error) {
	fc, err := readFeatures(fs, path)
	if err != nil {
		return nil, 0, err
	}
	var lines []orb.LineString
	skipped := 0
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			lines = append(lines, g)
		case orb.MultiLineString:
			lines = append(lines, g...)
		default:
			skipped++
		}
	}
	return lines, skipped, nil
}

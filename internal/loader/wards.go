package loader

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/greenward/greenward/internal/district"
	"github.com/greenward/greenward/internal/fetcher"
)

// Ward table columns.
const (
	colWardName      = "ward_name"
	colPopulation    = "Population"
	colPM25          = "PM25"
	colAvgTemp       = "Avg_Temp"
	colGreenCover    = "Green_Are"
	colOpenLand      = "Open_Land"
	colPriorityScore = "Priority_Sci"
	colPriorityLevel = "Priority_Level"
)

// nameProperties are the attribute names tried, in order, for a district's
// display name.
var nameProperties = []string{"ward_name", "WARD_NAME", "name", "Ward_Name", "WardName"}

// pathwayDiff is the column a streaming export uses to mark an update (+1)
// or a retraction (-1) of a row.
const pathwayDiff = "diff"

// wardSource is one place the ward table can be read from.
type wardSource struct {
	location string
	format   fetcher.TableFormat
}

// wardSources lists the configured ward table locations in the order they
// are tried. WardsURL is authoritative; the JSONL feed falls back to the CSV.
func (l *Loader) wardSources() []wardSource {
	if l.cfg.WardsURL != "" {
		return []wardSource{{l.cfg.WardsURL, fetcher.TableJSON}}
	}
	var out []wardSource
	if l.cfg.WardsJSONL != "" {
		out = append(out, wardSource{l.cfg.WardsJSONL, fetcher.TableJSONL})
	}
	if l.cfg.WardsCSV != "" {
		out = append(out, wardSource{l.cfg.WardsCSV, fetcher.TableCSV})
	}
	return out
}

// LoadWards reads the ward indicator table from the first source that can be
// read in full. It fails with ErrInputUnavailable only when every configured
// source fails.
func (l *Loader) LoadWards(ctx context.Context) ([]district.Record, error) {
	sources := l.wardSources()
	if len(sources) == 0 {
		return nil, unavailable(eris.New("no ward table configured"), "ward table", "")
	}

	var errs []string
	for i, src := range sources {
		recs, err := l.readWards(ctx, src.location, src.format)
		if err == nil {
			return recs, nil
		}
		if ctx.Err() != nil {
			return nil, unavailable(err, "ward table", src.location)
		}
		errs = append(errs, src.location+": "+err.Error())
		if i+1 < len(sources) {
			zap.L().Warn("loader: ward table source unavailable, falling back",
				zap.String("location", src.location),
				zap.String("fallback", sources[i+1].location),
				zap.Error(err),
			)
		}
	}

	last := sources[len(sources)-1].location
	return nil, unavailable(eris.New(strings.Join(errs, "; ")), "ward table", last)
}

func (l *Loader) readWards(ctx context.Context, location string, format fetcher.TableFormat) ([]district.Record, error) {
	rc, err := fetcher.Open(ctx, l.fetcher, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamTable(ctx, rc, format)

	var recs []district.Record
	first := true
	for row := range rowCh {
		if first {
			first = false
			if !hasNameColumn(row) {
				return nil, eris.Errorf("loader: ward table has no name column (want one of %v)", nameProperties)
			}
		}
		if retraction(row) {
			recs = retract(recs, district.NewKey(lookupName(row)))
			continue
		}
		if rec, ok := recordFromRow(row); ok {
			recs = append(recs, rec)
		}
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}

	zap.L().Debug("loader: read ward table",
		zap.String("location", location),
		zap.Stringer("format", format),
		zap.Int("records", len(recs)),
	)
	return recs, nil
}

// retraction reports whether row withdraws an earlier row of the same ward.
func retraction(row fetcher.Row) bool {
	v, ok := row[pathwayDiff]
	if !ok {
		return false
	}
	d, err := cast.ToFloat64E(v)
	return err == nil && d < 0
}

// retract drops the most recent record for key.
func retract(recs []district.Record, key district.NormalizedKey) []district.Record {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Key == key {
			return slices.Delete(recs, i, i+1)
		}
	}
	return recs
}

// recordFromRow converts one ward row into a Record. Blank numeric cells read
// as 0. Rows without a name or with an unparseable number are skipped.
func recordFromRow(row map[string]any) (district.Record, bool) {
	name := lookupName(row)
	if name == "" {
		zap.L().Warn("loader: skipping ward row without a name")
		return district.Record{}, false
	}
	log := zap.L().With(zap.String("ward", name))

	var (
		nums = map[string]float64{}
		bad  []string
	)
	for _, col := range []string{colPopulation, colPM25, colAvgTemp, colGreenCover, colOpenLand, colPriorityScore} {
		v, err := number(row[col])
		if err != nil {
			bad = append(bad, col)
			continue
		}
		nums[col] = v
	}
	if len(bad) > 0 {
		log.Warn("loader: skipping ward row with non-numeric values", zap.Strings("columns", bad))
		return district.Record{}, false
	}
	if nums[colPopulation] < 0 {
		log.Warn("loader: skipping ward row with negative population")
		return district.Record{}, false
	}

	level := priorityLevel(cast.ToString(row[colPriorityLevel]))
	if !level.Valid() {
		log.Debug("loader: unrecognized priority level", zap.Any("value", row[colPriorityLevel]))
	}

	return district.Record{
		Key:           district.NewKey(name),
		Name:          name,
		Population:    int64(math.Round(nums[colPopulation])),
		PM25:          nums[colPM25],
		AvgTemp:       nums[colAvgTemp],
		GreenCoverPct: nums[colGreenCover],
		OpenLandPct:   nums[colOpenLand],
		PriorityScore: nums[colPriorityScore],
		PriorityLevel: level,
	}, true
}

// number reads a numeric cell. nil and blank strings are 0.
func number(v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, eris.Wrap(err, "loader: parse number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("loader: non-finite number %v", v)
	}
	return f, nil
}

// lookupName returns the first non-blank name attribute.
func lookupName(props map[string]any) string {
	for _, k := range nameProperties {
		if v, ok := props[k]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// hasNameColumn reports whether row carries any of the name columns, even
// with a blank value.
func hasNameColumn(row fetcher.Row) bool {
	return slices.ContainsFunc(nameProperties, func(col string) bool {
		_, ok := row[col]
		return ok
	})
}

// priorityLevel matches Low/Medium/High case-insensitively and returns other
// values unchanged.
func priorityLevel(s string) district.PriorityLevel {
	s = strings.TrimSpace(s)
	for _, lvl := range []district.PriorityLevel{district.PriorityLow, district.PriorityMedium, district.PriorityHigh} {
		if strings.EqualFold(s, string(lvl)) {
			return lvl
		}
	}
	return district.PriorityLevel(s)
}

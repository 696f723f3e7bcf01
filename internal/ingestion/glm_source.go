package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/gcs"
	"storm-align-lab/internal/idhash"
)

// Lightning archive defaults (public GOES-East mirror).
const (
	DefaultLightningBucket = "gcp-public-data-goes-16"
	DefaultLightningPrefix = "GLM-L2-LCFA"
)

// lightningNameLayout parses the YYYYJJJHHMMSS coverage-start token
// embedded in archive object names.
const lightningNameLayout = "2006002150405"

// j2000 is the epoch the lightning product's scalar timestamps count
// seconds from.
var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// groupTableColumns are the required columns of a converted group table.
// The converter upstream flattens each product file into one CSV with the
// file-scalar product_time repeated per row.
var groupTableColumns = []string{
	"product_time",
	"group_time_offset",
	"group_lat",
	"group_lon",
	"group_area",
	"group_energy",
	"group_quality_flag",
}

// LightningSource lists and reads lightning group batches from the public
// archive. Objects are organized under hour prefixes {year}/{doy}/{hour};
// one object covers about twenty seconds, so a thirty-minute bin maps to
// around ninety batches.
type LightningSource struct {
	client *gcs.Client
	bucket string
	prefix string
	logger *log.Logger
}

// LightningSourceOptions contains configuration for creating a LightningSource.
type LightningSourceOptions struct {
	// Client for archive access. Required.
	Client *gcs.Client

	// Bucket and Prefix locate the archive. Default to the public
	// GOES-East mirror.
	Bucket string
	Prefix string

	// Logger for listing/read diagnostics. Defaults to the standard logger.
	Logger *log.Logger
}

// NewLightningSource creates a lightning archive source.
func NewLightningSource(opts LightningSourceOptions) (*LightningSource, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: gcs client is required", domain.ErrInvalidInput)
	}

	bucket := opts.Bucket
	if bucket == "" {
		bucket = DefaultLightningBucket
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultLightningPrefix
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &LightningSource{
		client: opts.Client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// ListBatches enumerates archive objects whose coverage starts inside the
// window. Every hour prefix overlapping the window is listed, including a
// trailing partial hour; the per-object name filter then applies the exact
// half-open bound.
func (s *LightningSource) ListBatches(ctx context.Context, window TimeWindow) ([]BatchHandle, error) {
	var handles []BatchHandle

	for cursor := window.Start.UTC().Truncate(time.Hour); cursor.Before(window.End); cursor = cursor.Add(time.Hour) {
		hourPrefix := fmt.Sprintf("%s/%d/%03d/%02d", s.prefix, cursor.Year(), cursor.YearDay(), cursor.Hour())

		objects, err := s.client.ListObjects(ctx, s.bucket, hourPrefix)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", domain.ErrSourceUnavailable, hourPrefix, err)
		}

		for _, obj := range objects {
			start, ok := parseObjectStart(obj.Name)
			if !ok {
				continue
			}
			if !window.Contains(start) {
				continue
			}
			handles = append(handles, BatchHandle{
				ID:        idhash.ComputeBatchID("glm", obj.Name),
				URL:       obj.Name,
				StartTime: start,
			})
		}
	}

	s.logger.Printf("Listed %d lightning batches in [%s, %s)",
		len(handles), window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	return handles, nil
}

// ReadBatch downloads one converted group table and decodes its rows.
func (s *LightningSource) ReadBatch(ctx context.Context, handle BatchHandle) ([]domain.Observation, error) {
	body, err := s.client.Download(ctx, s.bucket, handle.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", domain.ErrSourceUnavailable, handle.URL, err)
	}

	observations, err := decodeGroupTable(handle.ID, body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", handle.URL, err)
	}
	return observations, nil
}

// parseObjectStart extracts the coverage start from an object name like
// OR_GLM-L2-LCFA_G16_s20222690001000_e20222690001200_c20222690001228.csv:
// underscore token 3 is sYYYYJJJHHMMSSt, with an 's' prefix and a trailing
// tenths-of-second digit that are both dropped.
func parseObjectStart(name string) (time.Time, bool) {
	base := name[strings.LastIndexByte(name, '/')+1:]
	parts := strings.Split(base, "_")
	if len(parts) < 4 {
		return time.Time{}, false
	}

	token := parts[3]
	if len(token) < 3 || token[0] != 's' {
		return time.Time{}, false
	}

	start, err := time.Parse(lightningNameLayout, token[1:len(token)-1])
	if err != nil {
		return time.Time{}, false
	}
	return start, true
}

// decodeGroupTable parses a converted group table into observations.
// Group times are stored as raw uint16 offsets scaled over [-5s, +20s)
// around the file's product_time, which itself counts seconds from the
// J2000 epoch (product format reference, PUG L2+ vol. 5).
func decodeGroupTable(batchID string, data []byte) ([]domain.Observation, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range groupTableColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("group table missing column %q", name)
		}
	}

	var observations []domain.Observation
	for i := 0; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		productTime, err := strconv.ParseInt(record[col["product_time"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d product_time: %w", i, err)
		}
		offset, err := strconv.ParseUint(record[col["group_time_offset"]], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("row %d group_time_offset: %w", i, err)
		}
		lat, err := strconv.ParseFloat(record[col["group_lat"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d group_lat: %w", i, err)
		}
		lon, err := strconv.ParseFloat(record[col["group_lon"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d group_lon: %w", i, err)
		}
		area, err := strconv.ParseFloat(record[col["group_area"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d group_area: %w", i, err)
		}
		energy, err := strconv.ParseFloat(record[col["group_energy"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d group_energy: %w", i, err)
		}
		qflag, err := strconv.Atoi(record[col["group_quality_flag"]])
		if err != nil {
			return nil, fmt.Errorf("row %d group_quality_flag: %w", i, err)
		}

		offsetSeconds := float64(uint16(offset))*25/65536 - 5
		ts := j2000.
			Add(time.Duration(productTime) * time.Second).
			Add(time.Duration(offsetSeconds * float64(time.Second)))

		observations = append(observations, domain.Observation{
			ID:          idhash.ComputeObservationID(batchID, i, ts.UnixMilli()),
			Timestamp:   ts,
			Lat:         lat,
			Lon:         lon,
			AreaM2:      area,
			EnergyJ:     energy,
			QualityFlag: qflag,
		})
	}

	return observations, nil
}

var _ ObservationSource = (*LightningSource)(nil)

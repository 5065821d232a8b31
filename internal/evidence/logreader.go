package evidence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

// DefaultLimit bounds a ListEvidence call when the query does not.
const DefaultLimit = 50

// maxLineBytes accommodates large scanner payloads in a single log line.
const maxLineBytes = 1024 * 1024

// LogReader reads evidence records from a JSONL append-only log file. The
// file is produced by external scanners; unparseable lines are skipped
// with a warning rather than failing the read.
type LogReader struct {
	path string
}

// NewLogReader creates a reader for the evidence log at path.
func NewLogReader(path string) *LogReader {
	return &LogReader{path: path}
}

// ListEvidence implements Store. Records are returned most-recent-first,
// filtered by source when the query names one, bounded by the query limit.
func (r *LogReader) ListEvidence(ctx context.Context, q Query) ([]Record, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open evidence log: %w", err)
	}
	defer f.Close()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Warn().Err(err).Int("line", lineNo).Str("path", r.path).
				Msg("skipping unparseable evidence line")
			continue
		}

		if q.Source != "" && rec.Source != q.Source {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read evidence log: %w", err)
	}

	// The log is append-ordered; newest entries are last. Sort by
	// timestamp to be safe against out-of-order appends, then bound.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CheckedAt.After(records[j].CheckedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

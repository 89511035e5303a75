// Package metrics computes named business metrics for one tenant over
// historical windows of ingested records.
//
// A metric key has the form partition[.field[.aggregation]]. The partition
// selects the record type. One- and two-segment keys count records, so
// "sales", "sales.count" and "sales.revenue" all report the number of sales
// rows in the window, and the field of a counted key is only a label. A third
// segment of "sum" or "avg" reduces the named payload field instead, as in
// "sales.revenue.sum", and only then must the field be a plain identifier.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/records"
)

var ErrInvalidKey = errors.New("invalid metric key")

const day = 24 * time.Hour

// Key is a parsed metric key.
type Key struct {
	Partition   string
	Field       string
	Aggregation records.Aggregation
}

// ParseKey parses s according to the metric key grammar.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) > 3 {
		return Key{}, fmt.Errorf("%w: %q has more than three segments", ErrInvalidKey, s)
	}
	if !records.ValidField(parts[0]) {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	k := Key{Partition: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		if parts[1] == "" {
			return Key{}, fmt.Errorf("%w: %q has an empty field", ErrInvalidKey, s)
		}
		k.Field = parts[1]
	}
	if len(parts) == 3 {
		// the field is only read from payloads when it is reduced
		if !records.ValidField(k.Field) {
			return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		agg, ok := records.ParseAggregation(strings.ToLower(parts[2]))
		if !ok {
			return Key{}, fmt.Errorf("%w: unsupported aggregation %q", ErrInvalidKey, parts[2])
		}
		k.Aggregation = agg
	}
	return k, nil
}

// Counts reports whether the key evaluates to a record count.
func (k Key) Counts() bool {
	return k.Aggregation == ""
}

func (k Key) String() string {
	s := k.Partition
	if k.Field != "" {
		s += "." + k.Field
	}
	if k.Aggregation != "" {
		s += "." + string(k.Aggregation)
	}
	return s
}

// Source is the record store surface the aggregator reads.
type Source interface {
	Count(ctx context.Context, w records.Window) (int64, error)
	Aggregate(ctx context.Context, w records.Window, field string, agg records.Aggregation) (float64, error)
}

// Aggregator computes metric values. It has no side effects.
type Aggregator struct {
	source Source
	now    func() time.Time
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// WithClock replaces the aggregator's time source and returns the aggregator.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Window returns the half-open interval [end-windowDays, end) where
// end = now - offsetDays.
func (a *Aggregator) Window(windowDays, offsetDays int) (start, end time.Time) {
	end = a.now().Add(-time.Duration(offsetDays) * day)
	start = end.Add(-time.Duration(windowDays) * day)
	return start, end
}

// Compute returns the value of metricKey for tenantID over a window of
// windowDays ending offsetDays before now. An empty window yields 0.
func (a *Aggregator) Compute(ctx context.Context, tenantID uuid.UUID, metricKey string, windowDays, offsetDays int) (float64, error) {
	key, err := ParseKey(metricKey)
	if err != nil {
		return 0, err
	}
	if windowDays < 0 || offsetDays < 0 {
		return 0, fmt.Errorf("%w: negative window", ErrInvalidKey)
	}

	start, end := a.Window(windowDays, offsetDays)
	w := records.Window{
		TenantID:  tenantID,
		Partition: key.Partition,
		Start:     start,
		End:       end,
	}

	if key.Counts() {
		n, err := a.source.Count(ctx, w)
		if err != nil {
			return 0, fmt.Errorf("compute %s: %w", key, err)
		}
		return float64(n), nil
	}

	v, err := a.source.Aggregate(ctx, w, key.Field, key.Aggregation)
	if err != nil {
		return 0, fmt.Errorf("compute %s: %w", key, err)
	}
	return v, nil
}

// Package records decodes stored transactions and plans leniently, upgrading
// older record shapes and substituting defaults for values that cannot be used.
//
// Local storage and backup import share these rules, so a record that loads from
// one loads the same way from the other.
package records

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// rawRecord accepts every shape a transaction or plan has been stored in.
type rawRecord struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"` // label field used by older versions
	Description *string `json:"description"`

	Date   string          `json:"date"`
	Amount json.RawMessage `json:"amount"`
	Type   string          `json:"type"`

	Category      string `json:"category"`
	IsPaid        *bool  `json:"isPaid"`
	RelatedPlanID string `json:"relatedPlanId"`

	Frequency            string   `json:"frequency"`
	StartDate            string   `json:"startDate"`
	OccurrencesGenerated float64  `json:"occurrencesGenerated"`
	MaxOccurrences       *float64 `json:"maxOccurrences"`
	EndDate              *string  `json:"endDate"`

	LastModified json.RawMessage `json:"lastModified"`
}

// Decoder applies the migration rules. Today replaces unparseable dates.
type Decoder struct {
	Today civil.Date
	Log   zerolog.Logger

	// Fixes counts substituted values across all calls.
	Fixes int
}

// NewDecoder creates a decoder that logs substitutions at warn level.
func NewDecoder(today civil.Date, log zerolog.Logger) *Decoder {
	return &Decoder{Today: today, Log: log}
}

// Transactions decodes a JSON array of transactions.
func (d *Decoder) Transactions(data []byte) ([]domain.Transaction, error) {
	raws, err := decodeArray(data)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(raws))
	for _, r := range raws {
		f := d.fixer("transaction", r.ID)
		tx := domain.Transaction{
			ID:            f.id(r.ID),
			Date:          f.date("date", r.Date),
			Description:   f.label(r.Name, r.Description),
			Amount:        f.amount(r.Amount),
			Type:          f.entryType(r.Type),
			Category:      domain.CleanLabel(r.Category),
			IsPaid:        r.IsPaid == nil || *r.IsPaid,
			RelatedPlanID: r.RelatedPlanID,
			LastModified:  f.stamp(r.LastModified),
		}
		if r.IsPaid == nil && r.RelatedPlanID != "" {
			tx.IsPaid = false
		}
		out = append(out, tx)
	}
	return out, nil
}

// Plans decodes a JSON array of plans.
func (d *Decoder) Plans(data []byte) ([]domain.RecurringPlan, error) {
	raws, err := decodeArray(data)
	if err != nil {
		return nil, fmt.Errorf("Plans: %w", err)
	}

	out := make([]domain.RecurringPlan, 0, len(raws))
	for _, r := range raws {
		f := d.fixer("plan", r.ID)
		start := r.StartDate
		if start == "" {
			start = r.Date
		}
		plan := domain.RecurringPlan{
			ID:                   f.id(r.ID),
			Description:          f.label(r.Name, r.Description),
			Amount:               f.amount(r.Amount),
			Type:                 f.entryType(r.Type),
			Category:             domain.CleanLabel(r.Category),
			Frequency:            f.frequency(r.Frequency),
			StartDate:            f.date("startDate", start),
			OccurrencesGenerated: f.count("occurrencesGenerated", r.OccurrencesGenerated),
			LastModified:         f.stamp(r.LastModified),
		}
		if r.MaxOccurrences != nil {
			n := f.count("maxOccurrences", *r.MaxOccurrences)
			plan.MaxOccurrences = &n
		}
		if r.EndDate != nil && *r.EndDate != "" {
			if end, ok := schedule.ParseDate(*r.EndDate, civil.Date{}); ok {
				plan.EndDate = &end
			} else {
				f.warn("endDate", *r.EndDate, "dropped")
			}
		}
		out = append(out, plan)
	}
	return out, nil
}

// Tombstones decodes the deletion map. Malformed content yields an empty map.
func (d *Decoder) Tombstones(data []byte) domain.Tombstones {
	out := domain.Tombstones{}
	if isEmpty(data) {
		return out
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		d.Fixes++
		d.Log.Warn().Err(err).Msg("Discarding malformed deletion map")
		return out
	}
	for id, v := range raw {
		f := d.fixer("tombstone", id)
		out.Record(id, f.stamp(v))
	}
	return out
}

func decodeArray(data []byte) ([]rawRecord, error) {
	if isEmpty(data) {
		return nil, nil
	}
	var raws []rawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return raws, nil
}

func isEmpty(data []byte) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}

// fixer substitutes defaults for one record and logs each substitution.
type fixer struct {
	d     *Decoder
	kind  string
	recID string
}

func (d *Decoder) fixer(kind, id string) *fixer {
	return &fixer{d: d, kind: kind, recID: id}
}

func (f *fixer) warn(field, value, replacement string) {
	f.d.Fixes++
	f.d.Log.Warn().
		Str("record", f.kind).
		Str("id", f.recID).
		Str("field", field).
		Str("value", value).
		Str("replacement", replacement).
		Msg("Substituted default for stored value")
}

func (f *fixer) id(id string) string {
	if id != "" {
		return id
	}
	id = uuid.NewString()
	f.warn("id", "", id)
	f.recID = id
	return id
}

// label prefers the legacy name over the current description.
func (f *fixer) label(name, description *string) string {
	if name != nil {
		if s := domain.CleanLabel(*name); s != "" {
			return s
		}
	}
	if description != nil {
		if s := domain.CleanLabel(*description); s != "" {
			return s
		}
	}
	f.warn("description", "", domain.DefaultLabel)
	return domain.DefaultLabel
}

func (f *fixer) date(field, s string) civil.Date {
	d, ok := schedule.ParseDate(s, f.d.Today)
	if !ok {
		f.warn(field, s, d.String())
	}
	return d
}

func (f *fixer) amount(raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		f.warn("amount", s, "0")
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		f.warn("amount", s, "0")
		return decimal.Zero
	}
	if v.IsNegative() {
		f.warn("amount", s, v.Abs().String())
		return v.Abs()
	}
	return v
}

func (f *fixer) entryType(s string) domain.EntryType {
	t := domain.EntryType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	f.warn("type", s, string(domain.Expense))
	return domain.Expense
}

func (f *fixer) frequency(s string) domain.Frequency {
	fr := domain.Frequency(strings.ToLower(strings.TrimSpace(s)))
	if fr.Valid() {
		return fr
	}
	f.warn("frequency", s, string(domain.Monthly))
	return domain.Monthly
}

func (f *fixer) count(field string, v float64) int {
	if v < 0 || v != float64(int(v)) {
		n := 0
		if v > 0 {
			n = int(v)
		}
		f.warn(field, strconv.FormatFloat(v, 'f', -1, 64), strconv.Itoa(n))
		return n
	}
	return int(v)
}

// stamp accepts a number or a numeric string; anything else becomes 0, which
// loses every last-write-wins comparison.
func (f *fixer) stamp(raw json.RawMessage) domain.Stamp {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.warn("lastModified", s, "0")
		return 0
	}
	return domain.Stamp(int64(v))
}

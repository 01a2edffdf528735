package returns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// Table is a date-indexed set of numeric columns, one per instrument.
// Dates are strictly increasing; every column has one value per date.
type Table struct {
	Dates       []time.Time `json:"dates" msgpack:"dates"`
	Instruments []string    `json:"instruments" msgpack:"instruments"`
	Columns     [][]float64 `json:"columns" msgpack:"columns"`
}

// Rows returns the number of dates in the table.
func (t Table) Rows() int { return len(t.Dates) }

// Index returns the column position of an instrument, or -1.
func (t Table) Index(name string) int { return slices.Index(t.Instruments, name) }

// Has reports whether the table carries a column for the instrument.
func (t Table) Has(name string) bool { return t.Index(name) >= 0 }

// Column returns the values of one instrument.
func (t Table) Column(name string) ([]float64, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}
	return t.Columns[i], nil
}

// Last returns the final value of every column.
func (t Table) Last() Stats {
	out := make(Stats, len(t.Instruments))
	if t.Rows() == 0 {
		return out
	}
	for i, name := range t.Instruments {
		out[name] = t.Columns[i][t.Rows()-1]
	}
	return out
}

// validate checks the structural invariants shared by every table.
func (t Table) validate() error {
	if len(t.Instruments) == 0 {
		return fmt.Errorf("%w: table has no instruments", ErrInvalidInput)
	}
	if len(t.Columns) != len(t.Instruments) {
		return fmt.Errorf("%w: %d columns for %d instruments", ErrInvalidInput, len(t.Columns), len(t.Instruments))
	}

	seen := make(map[string]struct{}, len(t.Instruments))
	for i, name := range t.Instruments {
		if name == "" {
			return fmt.Errorf("%w: column %d has no instrument name", ErrInvalidInput, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate instrument %q", ErrInvalidInput, name)
		}
		seen[name] = struct{}{}

		if len(t.Columns[i]) == 0 && len(t.Dates) > 0 {
			return fmt.Errorf("%w: instrument %q has no values", ErrInvalidInput, name)
		}
		if len(t.Columns[i]) != len(t.Dates) {
			return fmt.Errorf("%w: instrument %q has %d values for %d dates", ErrInvalidInput, name, len(t.Columns[i]), len(t.Dates))
		}
	}

	for i := 1; i < len(t.Dates); i++ {
		if !t.Dates[i].After(t.Dates[i-1]) {
			return fmt.Errorf("%w: dates not strictly increasing at %s", ErrInvalidInput, t.Dates[i].Format(time.DateOnly))
		}
	}
	return nil
}

// PriceTable holds daily price levels (NAVs or index closes).
type PriceTable struct {
	Table `msgpack:",inline"`
}

// NewPriceTable builds a PriceTable and enforces its invariants: at least one
// row, strictly increasing unique dates, and a finite positive price in every cell.
func NewPriceTable(dates []time.Time, instruments []string, columns [][]float64) (PriceTable, error) {
	p := PriceTable{Table{Dates: dates, Instruments: instruments, Columns: columns}}
	if err := p.validate(); err != nil {
		return PriceTable{}, err
	}
	return p, nil
}

func (p PriceTable) validate() error {
	if p.Rows() == 0 {
		return fmt.Errorf("%w: price table has no rows", ErrInvalidInput)
	}
	if err := p.Table.validate(); err != nil {
		return err
	}
	for i, name := range p.Instruments {
		for row, v := range p.Columns[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: instrument %q has price %v on %s", ErrInvalidInput, name, v, p.Dates[row].Format(time.DateOnly))
			}
		}
	}
	return nil
}

// ReturnsTable holds period-over-period fractional changes.
type ReturnsTable struct {
	Table `msgpack:",inline"`
}

// NewReturnsTable builds a ReturnsTable from precomputed returns.
// Every value must be finite and no lower than -1.
func NewReturnsTable(dates []time.Time, instruments []string, columns [][]float64) (ReturnsTable, error) {
	r := ReturnsTable{Table{Dates: dates, Instruments: instruments, Columns: columns}}
	if err := r.Table.validate(); err != nil {
		return ReturnsTable{}, err
	}
	for i, name := range r.Instruments {
		for row, v := range r.Columns[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < -1 {
				return ReturnsTable{}, fmt.Errorf("%w: instrument %q has return %v on %s", ErrInvalidInput, name, v, r.Dates[row].Format(time.DateOnly))
			}
		}
	}
	return r, nil
}

func (r ReturnsTable) validate() error {
	return r.Table.validate()
}

// CumulativeReturnsTable holds the compounded growth of 1 unit invested before the first return.
type CumulativeReturnsTable struct {
	Table `msgpack:",inline"`
}

// Value is a statistic that may be undefined for a row or instrument.
// Undefined values encode as JSON null.
type Value struct {
	Float float64 `msgpack:"f"`
	Valid bool    `msgpack:"v"`
}

// Defined wraps a computed statistic.
func Defined(f float64) Value { return Value{Float: f, Valid: true} }

// Undefined is the explicit marker for a statistic that cannot be computed.
var Undefined = Value{}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}

// String renders the value, or "undefined".
func (v Value) String() string {
	if !v.Valid {
		return "undefined"
	}
	return fmt.Sprintf("%g", v.Float)
}

// RollingSeries is a single trailing-window statistic over time.
type RollingSeries struct {
	Dates  []time.Time `json:"dates" msgpack:"dates"`
	Values []Value     `json:"values" msgpack:"values"`
	Window int         `json:"window" msgpack:"window"`
}

// RollingTable is a trailing-window statistic per instrument over time.
type RollingTable struct {
	Dates       []time.Time `json:"dates" msgpack:"dates"`
	Instruments []string    `json:"instruments" msgpack:"instruments"`
	Columns     [][]Value   `json:"columns" msgpack:"columns"`
	Window      int         `json:"window" msgpack:"window"`
}

func (t RollingTable) validate() error {
	if len(t.Columns) != len(t.Instruments) {
		return fmt.Errorf("%w: %d columns for %d instruments", ErrInvalidInput, len(t.Columns), len(t.Instruments))
	}
	for i, col := range t.Columns {
		if len(col) != len(t.Dates) {
			return fmt.Errorf("%w: %q has %d rows for %d dates", ErrInvalidInput, t.Instruments[i], len(col), len(t.Dates))
		}
	}
	return nil
}

func (s RollingSeries) validate() error {
	if len(s.Values) != len(s.Dates) {
		return fmt.Errorf("%w: series has %d values for %d dates", ErrInvalidInput, len(s.Values), len(s.Dates))
	}
	return nil
}

// Column returns the values of one instrument.
func (t RollingTable) Column(name string) ([]Value, error) {
	i := slices.Index(t.Instruments, name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}
	return t.Columns[i], nil
}

// Series extracts one instrument as a RollingSeries.
func (t RollingTable) Series(name string) (RollingSeries, error) {
	col, err := t.Column(name)
	if err != nil {
		return RollingSeries{}, err
	}
	return RollingSeries{Dates: t.Dates, Values: col, Window: t.Window}, nil
}

// Stats maps an instrument to a scalar statistic.
type Stats map[string]float64

// Ranked is one entry of a sorted statistic.
type Ranked struct {
	Instrument string `json:"instrument" msgpack:"instrument"`
	Value      Value  `json:"value" msgpack:"value"`
}

// Sorted ranks the statistic from lowest to highest; ties are ordered by name.
func (s Stats) Sorted() []Ranked {
	out := make([]Ranked, 0, len(s))
	for name, v := range s {
		out = append(out, Ranked{Instrument: name, Value: Defined(v)})
	}
	sortRanked(out)
	return out
}

// Ratios maps an instrument to a ratio that is undefined when its denominator is zero.
type Ratios map[string]Value

// Sorted ranks defined ratios from lowest to highest, followed by undefined ones.
func (r Ratios) Sorted() []Ranked {
	out := make([]Ranked, 0, len(r))
	for name, v := range r {
		out = append(out, Ranked{Instrument: name, Value: v})
	}
	sortRanked(out)
	return out
}

// Require returns the ratio for an instrument, failing with ErrDivisionByZero
// when it is undefined.
func (r Ratios) Require(name string) (float64, error) {
	v, ok := r[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}
	if !v.Valid {
		return 0, fmt.Errorf("%w: ratio for %q has a zero denominator", ErrDivisionByZero, name)
	}
	return v.Float, nil
}

func sortRanked(out []Ranked) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Value, out[j].Value
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && a.Float != b.Float {
			return a.Float < b.Float
		}
		return out[i].Instrument < out[j].Instrument
	})
}

// Require returns the float, failing with ErrDivisionByZero when the value is undefined.
func (v Value) Require() (float64, error) {
	if !v.Valid {
		return 0, fmt.Errorf("%w: value is undefined", ErrDivisionByZero)
	}
	return v.Float, nil
}

package returns

import (
	"fmt"
	"slices"

	"github.com/aristath/whalewatch/pkg/formulas"
)

// Select returns a table restricted to the named instruments, in the given order.
func Select(t Table, names ...string) (Table, error) {
	if len(names) == 0 {
		return Table{}, fmt.Errorf("%w: no instruments selected", ErrInvalidInput)
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}

	out := Table{Dates: slices.Clone(t.Dates)}
	for _, name := range names {
		col, err := t.Column(name)
		if err != nil {
			return Table{}, err
		}
		if slices.Contains(out.Instruments, name) {
			return Table{}, fmt.Errorf("%w: instrument %q selected twice", ErrInvalidInput, name)
		}
		out.Instruments = append(out.Instruments, name)
		out.Columns = append(out.Columns, slices.Clone(col))
	}
	return out, nil
}

// Drop returns a table without the named instruments.
func Drop(t Table, names ...string) (Table, error) {
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	for _, name := range names {
		if !t.Has(name) {
			return Table{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
		}
	}

	out := Table{Dates: slices.Clone(t.Dates)}
	for i, name := range t.Instruments {
		if slices.Contains(names, name) {
			continue
		}
		out.Instruments = append(out.Instruments, name)
		out.Columns = append(out.Columns, slices.Clone(t.Columns[i]))
	}
	if len(out.Instruments) == 0 {
		return Table{}, fmt.Errorf("%w: dropping %v leaves no instruments", ErrInvalidInput, names)
	}
	return out, nil
}

// SelectReturns is Select for a ReturnsTable.
func SelectReturns(r ReturnsTable, names ...string) (ReturnsTable, error) {
	t, err := Select(r.Table, names...)
	return ReturnsTable{t}, err
}

// DropReturns is Drop for a ReturnsTable.
func DropReturns(r ReturnsTable, names ...string) (ReturnsTable, error) {
	t, err := Drop(r.Table, names...)
	return ReturnsTable{t}, err
}

// Distribution is the box-plot summary of one instrument's returns.
type Distribution struct {
	formulas.Quartiles
	IQR float64 `json:"iqr" msgpack:"iqr"`
}

// ComputeDistribution summarizes each instrument's return distribution.
func ComputeDistribution(r ReturnsTable) (map[string]Distribution, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.Rows() == 0 {
		return nil, fmt.Errorf("%w: distribution needs at least 1 observation", ErrInsufficientData)
	}

	out := make(map[string]Distribution, len(r.Instruments))
	for i, name := range r.Instruments {
		q := formulas.CalculateQuartiles(r.Columns[i])
		out[name] = Distribution{Quartiles: q, IQR: q.IQR()}
	}
	return out, nil
}

// Package frame provides a small column-typed table used to carry survey
// records between the loader, preprocessing and the model pipelines.
//
// Numeric columns hold float64 values with NaN marking a missing value.
// Categorical columns hold strings with "" marking a missing value.
package frame

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns store float64 values.
	Numeric Kind = iota
	// Categorical columns store strings.
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named, typed vector.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
}

// NewNumeric creates a numeric column.
func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Num: values}
}

// NewCategorical creates a categorical column.
func NewCategorical(name string, values []string) *Column {
	return &Column{Name: name, Kind: Categorical, Str: values}
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Str)
	}
	return len(c.Num)
}

// IsMissing reports whether row i holds a missing value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Categorical {
		return c.Str[i] == ""
	}
	return math.IsNaN(c.Num[i])
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Categorical {
		out.Str = make([]string, len(rows))
		for i, r := range rows {
			out.Str[i] = c.Str[r]
		}
		return out
	}
	out.Num = make([]float64, len(rows))
	for i, r := range rows {
		out.Num[i] = c.Num[r]
	}
	return out
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// New builds a frame from columns. Column names must be unique and lengths equal.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValueError("frame.New", "duplicate column "+c.Name)
		}
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, errors.NewDimensionError("frame.New", f.nrows, c.Len(), 0)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame holds a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewModelError("frame.Column", name, errors.ErrMissingColumn)
	}
	return f.cols[i], nil
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.cols...)
}

// ColumnsOfKind returns the names of columns with kind k, in frame order.
func (f *Frame) ColumnsOfKind(k Kind) []string {
	var names []string
	for _, c := range f.cols {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// Set adds col, replacing any existing column of the same name.
func (f *Frame) Set(col *Column) error {
	if len(f.cols) > 0 && col.Len() != f.nrows {
		return errors.NewDimensionError("Frame.Set", f.nrows, col.Len(), 0)
	}
	if len(f.cols) == 0 {
		f.nrows = col.Len()
	}
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if i, ok := f.index[col.Name]; ok {
		f.cols[i] = col
		return nil
	}
	f.index[col.Name] = len(f.cols)
	f.cols = append(f.cols, col)
	return nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var keep []*Column
	for _, c := range f.cols {
		if !skip[c.Name] {
			keep = append(keep, c)
		}
	}
	out, _ := New(keep...)
	if len(keep) == 0 {
		out.nrows = f.nrows
	}
	return out
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Take returns a new frame holding the given rows, in order.
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), nrows: len(rows)}
	for i, c := range f.cols {
		out.cols = append(out.cols, c.take(rows))
		out.index[c.Name] = i
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.nrows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// NumericMatrix stacks the named numeric columns into an nrows x len(names) matrix.
func (f *Frame) NumericMatrix(names []string) (*mat.Dense, error) {
	if f.nrows == 0 {
		return nil, errors.NewModelError("Frame.NumericMatrix", "no rows", errors.ErrEmptyData)
	}
	if len(names) == 0 {
		return nil, errors.NewValueError("Frame.NumericMatrix", "no columns requested")
	}
	out := mat.NewDense(f.nrows, len(names), nil)
	for j, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		if c.Kind != Numeric {
			return nil, errors.NewValueError("Frame.NumericMatrix", "column "+n+" is not numeric")
		}
		out.SetCol(j, c.Num)
	}
	return out, nil
}

// Strings returns the named categorical columns row-major.
func (f *Frame) Strings(names []string) ([][]string, error) {
	cols := make([]*Column, len(names))
	for j, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		if c.Kind != Categorical {
			return nil, errors.NewValueError("Frame.Strings", "column "+n+" is not categorical")
		}
		cols[j] = c
	}
	out := make([][]string, f.nrows)
	for i := range out {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = c.Str[i]
		}
		out[i] = row
	}
	return out, nil
}

// Float returns a numeric column's values.
func (f *Frame) Float(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewValueError("Frame.Float", "column "+name+" is not numeric")
	}
	return c.Num, nil
}

// Text returns a categorical column's values.
func (f *Frame) Text(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Categorical {
		return nil, errors.NewValueError("Frame.Text", "column "+name+" is not categorical")
	}
	return c.Str, nil
}

// Levels returns the sorted distinct non-missing values of a categorical column.
func (f *Frame) Levels(name string) ([]string, error) {
	vals, err := f.Text(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

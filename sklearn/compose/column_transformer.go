// Package compose applies different transformers to different column groups
// of a table and concatenates their outputs into one design matrix.
package compose

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// StringTransformer encodes categorical columns given row-major.
type StringTransformer interface {
	model.Estimator
	Fit(rows [][]string) error
	Transform(rows [][]string) (mat.Matrix, error)
	GetFeatureNamesOut(inputFeatures []string) []string
}

// Block is one named column group with its transformer. Exactly one of
// Numeric or Categorical is set.
type Block struct {
	Name        string
	Columns     []string
	Numeric     model.Transformer
	Categorical StringTransformer
}

// NumericBlock builds a block over numeric columns.
func NumericBlock(name string, columns []string, t model.Transformer) Block {
	return Block{Name: name, Columns: columns, Numeric: t}
}

// CategoricalBlock builds a block over categorical columns.
func CategoricalBlock(name string, columns []string, t StringTransformer) Block {
	return Block{Name: name, Columns: columns, Categorical: t}
}

func (b Block) estimator() model.Estimator {
	if b.Numeric != nil {
		return b.Numeric
	}
	return b.Categorical
}

func (b Block) clone() Block {
	out := Block{Name: b.Name, Columns: append([]string(nil), b.Columns...)}
	if b.Numeric != nil {
		out.Numeric = b.Numeric.Clone().(model.Transformer)
	} else {
		out.Categorical = b.Categorical.Clone().(StringTransformer)
	}
	return out
}

// ColumnTransformer applies each block to its columns and stacks the results
// left to right in block order. Columns not named by any block are dropped.
// Blocks with no columns are skipped, so a subset without categorical
// columns still fits.
type ColumnTransformer struct {
	state  *model.StateManager
	logger log.Logger

	blocks       []Block
	featureNames []string
}

// NewColumnTransformer creates a ColumnTransformer over blocks.
func NewColumnTransformer(blocks ...Block) *ColumnTransformer {
	return &ColumnTransformer{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("ColumnTransformer"),
		blocks: blocks,
	}
}

// Blocks returns the configured blocks.
func (ct *ColumnTransformer) Blocks() []Block {
	out := make([]Block, len(ct.blocks))
	copy(out, ct.blocks)
	return out
}

func (ct *ColumnTransformer) active() []Block {
	var out []Block
	for _, b := range ct.blocks {
		if len(b.Columns) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Fit fits every non-empty block on its columns of f.
func (ct *ColumnTransformer) Fit(f *frame.Frame) (err error) {
	defer errors.Recover(&err, "ColumnTransformer.Fit")
	if f == nil || f.NRows() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	blocks := ct.active()
	if len(blocks) == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "no block has any columns")
	}

	names := make([]string, 0)
	for _, b := range blocks {
		if b.Numeric != nil {
			X, err := f.NumericMatrix(b.Columns)
			if err != nil {
				return errors.Wrapf(err, "block '%s'", b.Name)
			}
			if err := b.Numeric.Fit(X); err != nil {
				return errors.Wrapf(err, "failed to fit block '%s'", b.Name)
			}
			names = append(names, prefixed(b.Name, numericNames(b.Numeric, b.Columns))...)
			continue
		}
		rows, err := f.Strings(b.Columns)
		if err != nil {
			return errors.Wrapf(err, "block '%s'", b.Name)
		}
		if err := b.Categorical.Fit(rows); err != nil {
			return errors.Wrapf(err, "failed to fit block '%s'", b.Name)
		}
		names = append(names, prefixed(b.Name, b.Categorical.GetFeatureNamesOut(b.Columns))...)
	}

	ct.featureNames = names
	ct.state.SetDimensions(len(names), f.NRows())
	ct.state.SetFitted()
	ct.logger.Debug("ColumnTransformer fitted",
		log.SamplesKey, f.NRows(),
		log.FeaturesKey, len(names),
		"blocks", len(blocks),
	)
	return nil
}

// Transform returns the horizontally stacked block outputs.
func (ct *ColumnTransformer) Transform(f *frame.Frame) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "ColumnTransformer.Transform")
	if !ct.state.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	if f == nil || f.NRows() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	parts := make([]mat.Matrix, 0, len(ct.blocks))
	width := 0
	for _, b := range ct.active() {
		var out mat.Matrix
		if b.Numeric != nil {
			X, err := f.NumericMatrix(b.Columns)
			if err != nil {
				return nil, errors.Wrapf(err, "block '%s'", b.Name)
			}
			if out, err = b.Numeric.Transform(X); err != nil {
				return nil, errors.Wrapf(err, "failed to transform block '%s'", b.Name)
			}
		} else {
			rows, err := f.Strings(b.Columns)
			if err != nil {
				return nil, errors.Wrapf(err, "block '%s'", b.Name)
			}
			if out, err = b.Categorical.Transform(rows); err != nil {
				return nil, errors.Wrapf(err, "failed to transform block '%s'", b.Name)
			}
		}
		_, c := out.Dims()
		width += c
		parts = append(parts, out)
	}
	if width != len(ct.featureNames) {
		return nil, errors.NewDimensionError("ColumnTransformer.Transform", len(ct.featureNames), width, 1)
	}

	result := mat.NewDense(f.NRows(), width, nil)
	offset := 0
	for _, p := range parts {
		_, c := p.Dims()
		if c == 0 {
			continue
		}
		result.Slice(0, f.NRows(), offset, offset+c).(*mat.Dense).Copy(p)
		offset += c
	}
	return result, nil
}

// FitTransform fits and transforms f.
func (ct *ColumnTransformer) FitTransform(f *frame.Frame) (mat.Matrix, error) {
	if err := ct.Fit(f); err != nil {
		return nil, err
	}
	return ct.Transform(f)
}

// GetFeatureNamesOut returns "block__feature" names of the fitted output.
func (ct *ColumnTransformer) GetFeatureNamesOut() []string {
	return append([]string(nil), ct.featureNames...)
}

// GetParams returns every block's parameters under "block__".
func (ct *ColumnTransformer) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for _, b := range ct.blocks {
		model.PrefixParams(params, b.Name, b.estimator().GetParams())
	}
	return params
}

// SetParams routes "block__..." keys to the named block.
func (ct *ColumnTransformer) SetParams(params map[string]interface{}) error {
	own, nested := model.SplitParams(params)
	if keys := model.SortedKeys(own); len(keys) > 0 {
		return model.UnknownParam("ColumnTransformer", keys[0])
	}
	for name, sub := range nested {
		b, ok := ct.block(name)
		if !ok {
			return errors.NewValidationError(name, "no such column block", name)
		}
		if err := b.estimator().SetParams(sub); err != nil {
			return errors.Wrapf(err, "block '%s'", name)
		}
	}
	ct.state.Reset()
	ct.featureNames = nil
	return nil
}

func (ct *ColumnTransformer) block(name string) (Block, bool) {
	for _, b := range ct.blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// Clone returns an unfitted copy with cloned block transformers.
func (ct *ColumnTransformer) Clone() model.Estimator {
	blocks := make([]Block, len(ct.blocks))
	for i, b := range ct.blocks {
		blocks[i] = b.clone()
	}
	return NewColumnTransformer(blocks...)
}

func (ct *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer(blocks=%d)", len(ct.blocks))
}

func numericNames(t model.Transformer, cols []string) []string {
	if namer, ok := t.(interface {
		GetFeatureNamesOut([]string) []string
	}); ok {
		return namer.GetFeatureNamesOut(cols)
	}
	return cols
}

func prefixed(block string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = block + model.ParamSep + n
	}
	return out
}

package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

func logger() log.Logger { return log.GetLoggerWithName("dataset") }

// missingTokens are cell values read as missing.
var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "None": true,
}

// Load reads a survey table, choosing the format by file extension:
// .parquet and .pq are Parquet, anything else is CSV.
func Load(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return LoadParquet(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		fr, err := LoadCSV(f)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		logger().Info("Dataset loaded", log.OperationKey, log.OperationLoad, log.PathKey, path, log.SamplesKey, fr.NRows(), "columns", fr.NCols())
		return fr, nil
	}
}

// LoadCSV reads a CSV table with a header row. A leading unnamed index
// column, as written by pandas, is dropped. A column is numeric when every
// non-missing cell parses as a float and categorical otherwise.
func LoadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("dataset.LoadCSV", "no header row", errors.ErrEmptyData)
	}
	header := records[0]
	rows := records[1:]

	start := 0
	if len(header) > 0 && (strings.TrimSpace(header[0]) == "" || strings.HasPrefix(header[0], "Unnamed")) {
		start = 1
	}
	names := canonicalNames(header[start:])

	cols := make([]*frame.Column, 0, len(names))
	for j, name := range names {
		cells := make([]string, len(rows))
		for i, rec := range rows {
			cells[i] = strings.TrimSpace(rec[start+j])
		}
		cols = append(cols, inferColumn(name, cells))
	}
	return frame.New(cols...)
}

// canonicalNames applies header aliases unless the canonical name is
// already present.
func canonicalNames(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if c, ok := aliases[h]; ok && !present[c] {
			h = c
		}
		out[i] = h
	}
	return out
}

func inferColumn(name string, cells []string) *frame.Column {
	nums := make([]float64, len(cells))
	for i, s := range cells {
		if missingTokens[s] {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			strs := make([]string, len(cells))
			for k, c := range cells {
				if !missingTokens[c] {
					strs[k] = c
				}
			}
			return frame.NewCategorical(name, strs)
		}
		nums[i] = v
	}
	return frame.NewNumeric(name, nums)
}

// LoadParquet reads a flat Parquet file. Byte-array columns become
// categorical, every other physical type numeric. Nulls become missing.
func LoadParquet(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "open parquet %s", path)
	}

	fields := pf.Schema().Fields()
	categorical := make([]bool, len(fields))
	header := make([]string, len(fields))
	for j, fld := range fields {
		if !fld.Leaf() {
			return nil, errors.NewValueError("dataset.LoadParquet", "nested column "+fld.Name()+" is not supported")
		}
		header[j] = fld.Name()
		switch fld.Type().Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			categorical[j] = true
		}
	}

	n := int(pf.NumRows())
	nums := make([][]float64, len(fields))
	strs := make([][]string, len(fields))
	for j := range fields {
		if categorical[j] {
			strs[j] = make([]string, 0, n)
		} else {
			nums[j] = make([]float64, 0, n)
		}
	}

	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			k, err := rows.ReadRows(buf)
			for _, row := range buf[:k] {
				for _, v := range row {
					j := v.Column()
					if categorical[j] {
						if v.IsNull() {
							strs[j] = append(strs[j], "")
						} else {
							strs[j] = append(strs[j], string(v.ByteArray()))
						}
						continue
					}
					nums[j] = append(nums[j], parquetFloat(v))
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, errors.Wrapf(err, "read rows of %s", path)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, errors.Wrapf(err, "close row group of %s", path)
		}
	}

	names := canonicalNames(header)
	cols := make([]*frame.Column, len(fields))
	for j, name := range names {
		if categorical[j] {
			cols[j] = frame.NewCategorical(name, strs[j])
		} else {
			cols[j] = frame.NewNumeric(name, nums[j])
		}
	}
	out, err := frame.New(cols...)
	if err != nil {
		return nil, err
	}
	logger().Info("Dataset loaded", log.OperationKey, log.OperationLoad, log.PathKey, path, log.SamplesKey, out.NRows(), "columns", out.NCols())
	return out, nil
}

func parquetFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return math.NaN()
	}
}

// Package preprocess turns feature rows into the numeric matrix the forest
// is trained and evaluated on.
//
// Columns are laid out as the standardized numeric block in schema order,
// followed by one one-hot block per categorical feature in schema order.
// Each block's vocabulary is sorted at fit time. A category that was not seen
// while fitting encodes to zeros across its block.
package preprocess

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/errs"
)

// Transformer holds the statistics fitted on a training split. It is
// immutable after Fit and safe for concurrent use.
type Transformer struct {
	Numeric     []NumericStat `json:"numeric"`
	Categorical []Vocabulary  `json:"categorical"`

	index []map[string]int
}

// NumericStat is the fitted location and scale of one numeric column.
type NumericStat struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// Vocabulary is the sorted category set of one categorical column.
type Vocabulary struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Fit computes the mean and population standard deviation of every numeric
// feature and the vocabulary of every categorical feature. A column with
// zero spread is scaled by 1.
func Fit(rows []feature.Row) (*Transformer, error) {
	if len(rows) == 0 {
		return nil, errs.New(errs.CodeInvalidArgument, "cannot fit transformer on zero rows")
	}

	columns := make([]stats.Float64Data, len(feature.NumericNames))
	for i := range columns {
		columns[i] = make(stats.Float64Data, len(rows))
	}
	seen := make([]map[string]struct{}, len(feature.CategoricalNames))
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}

	for r, row := range rows {
		for c, v := range row.Numeric() {
			columns[c][r] = v
		}
		for c, v := range row.Categorical() {
			seen[c][v] = struct{}{}
		}
	}

	t := &Transformer{
		Numeric:     make([]NumericStat, len(columns)),
		Categorical: make([]Vocabulary, len(seen)),
	}
	for c, col := range columns {
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("mean of %s: %w", feature.NumericNames[c], err)
		}
		std, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("standard deviation of %s: %w", feature.NumericNames[c], err)
		}
		if std == 0 {
			std = 1
		}
		t.Numeric[c] = NumericStat{Name: feature.NumericNames[c], Mean: mean, Scale: std}
	}
	for c, set := range seen {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		t.Categorical[c] = Vocabulary{Name: feature.CategoricalNames[c], Values: values}
	}
	t.buildIndex()
	return t, nil
}

// Width returns the number of output columns.
func (t *Transformer) Width() int {
	w := len(t.Numeric)
	for _, v := range t.Categorical {
		w += len(v.Values)
	}
	return w
}

// Columns returns the output column names, e.g. "age" or "country=CL".
func (t *Transformer) Columns() []string {
	out := make([]string, 0, t.Width())
	for _, n := range t.Numeric {
		out = append(out, n.Name)
	}
	for _, v := range t.Categorical {
		for _, value := range v.Values {
			out = append(out, v.Name+"="+value)
		}
	}
	return out
}

// TransformRow encodes a single row.
func (t *Transformer) TransformRow(row feature.Row) []float64 {
	out := make([]float64, t.Width())
	t.encode(row, out)
	return out
}

// Transform encodes rows into a row-major matrix.
func (t *Transformer) Transform(rows []feature.Row) [][]float64 {
	width := t.Width()
	backing := make([]float64, width*len(rows))
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = backing[i*width : (i+1)*width : (i+1)*width]
		t.encode(row, out[i])
	}
	return out
}

func (t *Transformer) encode(row feature.Row, dst []float64) {
	for c, v := range row.Numeric() {
		s := t.Numeric[c]
		dst[c] = (v - s.Mean) / s.Scale
	}
	offset := len(t.Numeric)
	for c, v := range row.Categorical() {
		if pos, ok := t.index[c][v]; ok {
			dst[offset+pos] = 1
		}
		offset += len(t.Categorical[c].Values)
	}
}

// Validate checks a decoded transformer against the feature schema and
// rebuilds its lookup tables.
func (t *Transformer) Validate() error {
	if len(t.Numeric) != len(feature.NumericNames) {
		return fmt.Errorf("transformer has %d numeric columns, schema has %d", len(t.Numeric), len(feature.NumericNames))
	}
	for i, n := range t.Numeric {
		if n.Name != feature.NumericNames[i] {
			return fmt.Errorf("numeric column %d is %q, schema expects %q", i, n.Name, feature.NumericNames[i])
		}
		if n.Scale == 0 {
			return fmt.Errorf("numeric column %q has zero scale", n.Name)
		}
	}
	if len(t.Categorical) != len(feature.CategoricalNames) {
		return fmt.Errorf("transformer has %d categorical columns, schema has %d", len(t.Categorical), len(feature.CategoricalNames))
	}
	for i, v := range t.Categorical {
		if v.Name != feature.CategoricalNames[i] {
			return fmt.Errorf("categorical column %d is %q, schema expects %q", i, v.Name, feature.CategoricalNames[i])
		}
		if !sort.StringsAreSorted(v.Values) {
			return fmt.Errorf("vocabulary of %q is not sorted", v.Name)
		}
	}
	t.buildIndex()
	return nil
}

func (t *Transformer) buildIndex() {
	t.index = make([]map[string]int, len(t.Categorical))
	for c, v := range t.Categorical {
		m := make(map[string]int, len(v.Values))
		for i, value := range v.Values {
			m[value] = i
		}
		t.index[c] = m
	}
}

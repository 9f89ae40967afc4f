package preprocess

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/errs"
)

func sampleRows() []feature.Row {
	return []feature.Row{
		{Age: 20, Country: "CL", City: "Santiago", AccountAgeDays: 100, TicketsPerOrderAvg: 1, AttendanceRate: 0.2},
		{Age: 30, Country: "AR", City: "Cordoba", AccountAgeDays: 200, TicketsPerOrderAvg: 2, AttendanceRate: 0.4},
		{Age: 40, Country: "CL", City: "Valparaiso", AccountAgeDays: 300, TicketsPerOrderAvg: 3, AttendanceRate: 0.6},
		{Age: 50, Country: "PE", City: "Lima", AccountAgeDays: 400, TicketsPerOrderAvg: 4, AttendanceRate: 0.8},
	}
}

func TestFit_Statistics(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	require.Len(t, tr.Numeric, len(feature.NumericNames))
	age := tr.Numeric[0]
	assert.Equal(t, feature.Age, age.Name)
	assert.InDelta(t, 35.0, age.Mean, 1e-9)
	// Population standard deviation of 20, 30, 40, 50.
	assert.InDelta(t, 11.180339887, age.Scale, 1e-6)

	// canceled_orders is constant, so it is scaled by 1.
	canceled := tr.Numeric[3]
	assert.Equal(t, feature.CanceledOrders, canceled.Name)
	assert.Equal(t, 1.0, canceled.Scale)

	assert.Equal(t, []string{"AR", "CL", "PE"}, tr.Categorical[0].Values)
	assert.Equal(t, []string{"Cordoba", "Lima", "Santiago", "Valparaiso"}, tr.Categorical[1].Values)
	assert.Equal(t, len(feature.NumericNames)+3+4, tr.Width())
}

func TestFit_Empty(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestTransform_ColumnOrder(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	cols := tr.Columns()
	require.Len(t, cols, tr.Width())
	assert.Equal(t, feature.NumericNames, cols[:len(feature.NumericNames)])
	assert.Equal(t, "country=AR", cols[len(feature.NumericNames)])
	assert.Equal(t, "city=Valparaiso", cols[len(cols)-1])

	x := tr.TransformRow(sampleRows()[0])
	assert.InDelta(t, (20-35)/11.180339887, x[0], 1e-6)

	n := len(feature.NumericNames)
	assert.Equal(t, []float64{0, 1, 0}, x[n:n+3])
	assert.Equal(t, []float64{0, 0, 1, 0}, x[n+3:])
}

func TestTransform_UnseenCategoryIsAllZero(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	row := sampleRows()[1]
	row.Country = "ZZ"
	row.City = "Atlantis"

	x := tr.TransformRow(row)
	n := len(feature.NumericNames)
	for _, v := range x[n:] {
		assert.Zero(t, v)
	}
}

func TestTransform_MatrixMatchesRows(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	m := tr.Transform(sampleRows())
	require.Len(t, m, 4)
	for i, row := range sampleRows() {
		assert.Equal(t, tr.TransformRow(row), m[i])
	}
}

func TestTransformer_JSONRoundTrip(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	raw, err := json.Marshal(tr)
	require.NoError(t, err)

	var decoded Transformer
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.Validate())

	row := sampleRows()[2]
	assert.Equal(t, tr.TransformRow(row), decoded.TransformRow(row))
}

func TestTransformer_ValidateRejectsForeignLayout(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)

	tr.Numeric = tr.Numeric[1:]
	assert.Error(t, tr.Validate())

	tr, err = Fit(sampleRows())
	require.NoError(t, err)
	tr.Categorical[0].Values = []string{"PE", "AR"}
	assert.Error(t, tr.Validate())
}

func TestTransform_OneHotProperty(t *testing.T) {
	tr, err := Fit(sampleRows())
	require.NoError(t, err)
	n := len(feature.NumericNames)
	countries := tr.Categorical[0].Values

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("country block holds exactly one 1 for known values and none otherwise", prop.ForAll(
		func(country string) bool {
			row := sampleRows()[0]
			row.Country = country
			x := tr.TransformRow(row)

			var ones int
			for _, v := range x[n : n+len(countries)] {
				switch v {
				case 1:
					ones++
				case 0:
				default:
					return false
				}
			}
			known := false
			for _, c := range countries {
				if c == country {
					known = true
				}
			}
			if known {
				return ones == 1
			}
			return ones == 0
		},
		gen.OneConstOf("AR", "CL", "PE", "ZZ", "cl", "", "Chile"),
	))

	properties.TestingRun(t)
}

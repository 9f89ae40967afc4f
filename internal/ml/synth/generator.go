// Package synth synthesizes labelled behavioural profiles for training.
//
// Base rows are drawn column by column, then two independent segment masks
// ("trusted" and "risky") resample correlated fields, trusted first so that
// risky values win where both apply. Labels are Bernoulli draws from a
// logistic transform of a fixed linear risk index. Every draw comes from a
// single source seeded by the caller, so (size, seed) fully determines the
// dataset.
package synth

import (
	"math"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/errs"
)

const (
	// MinSize is the smallest dataset that can be generated or trained on.
	MinSize = 1000
	// DefaultSize and DefaultSeed are the reference training parameters.
	DefaultSize = 120000
	DefaultSeed = 42

	trustedShare = 0.30
	riskyShare   = 0.15
)

// Countries and CountryWeights define the country distribution.
var (
	Countries      = []string{"CL", "AR", "PE", "MX", "CO", "UY", "EC", "BR", "US", "ES"}
	CountryWeights = []float64{0.2, 0.15, 0.12, 0.16, 0.12, 0.05, 0.06, 0.06, 0.04, 0.04}
)

// Cities are drawn uniformly.
var Cities = []string{
	"Santiago",
	"Valparaiso",
	"Lima",
	"Bogota",
	"Medellin",
	"CDMX",
	"Monterrey",
	"BuenosAires",
	"Cordoba",
	"Montevideo",
	"Quito",
	"SaoPaulo",
	"Miami",
	"Madrid",
}

var countryCumulative = cumulate(CountryWeights)

// LabeledRow is a feature row with its binary training label.
type LabeledRow struct {
	feature.Row
	Label int `json:"label"`
}

// Dataset is an immutable, ordered set of labelled rows.
type Dataset struct {
	rows []LabeledRow
	seed int64
}

// NewDataset wraps rows produced elsewhere, such as fixtures or imported
// samples. The slice is copied.
func NewDataset(rows []LabeledRow) *Dataset {
	cp := make([]LabeledRow, len(rows))
	copy(cp, rows)
	return &Dataset{rows: cp}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Seed returns the seed the dataset was generated with.
func (d *Dataset) Seed() int64 { return d.seed }

// At returns row i.
func (d *Dataset) At(i int) LabeledRow { return d.rows[i] }

// Features returns a copy of the feature rows in order.
func (d *Dataset) Features() []feature.Row {
	out := make([]feature.Row, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.Row
	}
	return out
}

// Labels returns a copy of the labels in order.
func (d *Dataset) Labels() []int {
	out := make([]int, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.Label
	}
	return out
}

// PositiveRate returns the share of rows labelled 1.
func (d *Dataset) PositiveRate() float64 {
	if len(d.rows) == 0 {
		return 0
	}
	var pos int
	for _, r := range d.rows {
		pos += r.Label
	}
	return float64(pos) / float64(len(d.rows))
}

// Generate draws a dataset of the given size.
func Generate(size int, seed int64) (*Dataset, error) {
	if size < MinSize {
		return nil, errs.Newf(errs.CodeInvalidArgument, "--size must be at least %d", MinSize)
	}

	s := newSampler(seed)
	rows := make([]LabeledRow, size)

	for i := range rows {
		rows[i].Age = s.intRange(16, 75)
	}
	for i := range rows {
		rows[i].Country = Countries[s.categorical(countryCumulative)]
	}
	for i := range rows {
		rows[i].City = Cities[s.r.IntN(len(Cities))]
	}
	for i := range rows {
		rows[i].AccountAgeDays = s.intRange(1, 3650)
	}
	for i := range rows {
		rows[i].PurchasesLast12Months = s.poisson(6)
	}
	for i := range rows {
		rows[i].CanceledOrders = s.poisson(1.2)
	}
	for i := range rows {
		rows[i].TicketsPerOrderAvg = s.uniform(1, 6)
	}
	for i := range rows {
		rows[i].DistanceToVenueKm = s.uniform(0.2, 400)
	}
	for i := range rows {
		rows[i].PaymentFailuresRatio = s.uniform(0, 0.35)
	}
	for i := range rows {
		rows[i].EventAffinityScore = s.uniform(0, 1)
	}
	for i := range rows {
		rows[i].NightPurchaseRatio = s.uniform(0, 1)
	}
	for i := range rows {
		rows[i].ResaleReportsCount = s.poisson(0.8)
	}
	for i := range rows {
		rows[i].AttendanceRate = s.uniform(0, 1)
	}

	trusted := mask(s, size, trustedShare)
	risky := mask(s, size, riskyShare)

	for _, i := range trusted {
		rows[i].AccountAgeDays = s.intRange(900, 3650)
	}
	for _, i := range trusted {
		rows[i].AttendanceRate = s.uniform(0.65, 1)
	}
	for _, i := range trusted {
		rows[i].EventAffinityScore = s.uniform(0.6, 1)
	}
	for _, i := range trusted {
		rows[i].PaymentFailuresRatio = s.uniform(0, 0.08)
	}

	for _, i := range risky {
		rows[i].TicketsPerOrderAvg = s.uniform(3.2, 8.5)
	}
	for _, i := range risky {
		rows[i].NightPurchaseRatio = s.uniform(0.45, 1)
	}
	for _, i := range risky {
		rows[i].ResaleReportsCount = s.poisson(3.3)
	}
	for _, i := range risky {
		rows[i].PaymentFailuresRatio = s.uniform(0.12, 0.55)
	}
	for _, i := range risky {
		rows[i].AttendanceRate = s.uniform(0, 0.45)
	}

	for i := range rows {
		if s.bernoulli(LabelProbability(rows[i].Row)) {
			rows[i].Label = 1
		}
	}

	return &Dataset{rows: rows, seed: seed}, nil
}

// mask draws one Bernoulli flag per row and returns the flagged indices in
// ascending order.
func mask(s *sampler, size int, p float64) []int {
	var idx []int
	for i := 0; i < size; i++ {
		if s.bernoulli(p) {
			idx = append(idx, i)
		}
	}
	return idx
}

// RiskIndex is the linear score that drives label generation.
func RiskIndex(r feature.Row) float64 {
	return (r.TicketsPerOrderAvg-1.8)*0.30 +
		r.PaymentFailuresRatio*2.3 +
		r.NightPurchaseRatio*0.85 +
		float64(r.ResaleReportsCount)*0.35 -
		r.EventAffinityScore*1.7 -
		r.AttendanceRate*2.1 -
		math.Log1p(float64(r.AccountAgeDays))*0.12
}

// LabelProbability is 1/(1+e^risk). It decreases as the risk index grows;
// the label is class 1 with this probability.
func LabelProbability(r feature.Row) float64 {
	return 1 / (1 + math.Exp(RiskIndex(r)))
}

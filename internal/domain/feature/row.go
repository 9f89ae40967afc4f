package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ticketguard/scoring/internal/errs"
)

// Row is one behavioural profile in schema order.
type Row struct {
	Age                   int     `json:"age"`
	Country               string  `json:"country"`
	City                  string  `json:"city"`
	AccountAgeDays        int     `json:"account_age_days"`
	PurchasesLast12Months int     `json:"purchases_last_12_months"`
	CanceledOrders        int     `json:"canceled_orders"`
	TicketsPerOrderAvg    float64 `json:"tickets_per_order_avg"`
	DistanceToVenueKm     float64 `json:"distance_to_venue_km"`
	PaymentFailuresRatio  float64 `json:"payment_failures_ratio"`
	EventAffinityScore    float64 `json:"event_affinity_score"`
	NightPurchaseRatio    float64 `json:"night_purchase_ratio"`
	ResaleReportsCount    int     `json:"resale_reports_count"`
	AttendanceRate        float64 `json:"attendance_rate"`
}

// Numeric returns the numeric features in NumericNames order.
func (r Row) Numeric() []float64 {
	return []float64{
		float64(r.Age),
		float64(r.AccountAgeDays),
		float64(r.PurchasesLast12Months),
		float64(r.CanceledOrders),
		r.TicketsPerOrderAvg,
		r.DistanceToVenueKm,
		r.PaymentFailuresRatio,
		r.EventAffinityScore,
		r.NightPurchaseRatio,
		float64(r.ResaleReportsCount),
		r.AttendanceRate,
	}
}

// Categorical returns the categorical features in CategoricalNames order.
func (r Row) Categorical() []string {
	return []string{r.Country, r.City}
}

// Map returns the row keyed by feature name.
func (r Row) Map() map[string]any {
	return map[string]any{
		Age:                   r.Age,
		Country:               r.Country,
		City:                  r.City,
		AccountAgeDays:        r.AccountAgeDays,
		PurchasesLast12Months: r.PurchasesLast12Months,
		CanceledOrders:        r.CanceledOrders,
		TicketsPerOrderAvg:    r.TicketsPerOrderAvg,
		DistanceToVenueKm:     r.DistanceToVenueKm,
		PaymentFailuresRatio:  r.PaymentFailuresRatio,
		EventAffinityScore:    r.EventAffinityScore,
		NightPurchaseRatio:    r.NightPurchaseRatio,
		ResaleReportsCount:    r.ResaleReportsCount,
		AttendanceRate:        r.AttendanceRate,
	}
}

// Validate checks every value against its field range and returns an
// InvalidArgument error listing the offending fields.
func (r Row) Validate() error {
	fields := make(map[string][]string)
	values := r.Map()
	for _, f := range Fields {
		if msg := f.check(values[f.Name]); msg != "" {
			fields[f.Name] = append(fields[f.Name], msg)
		}
	}
	if len(fields) > 0 {
		return errs.Invalid("feature values out of range", fields)
	}
	return nil
}

func (f Field) check(v any) string {
	switch f.Kind {
	case KindCategorical:
		s, _ := v.(string)
		if strings.TrimSpace(s) == "" {
			return "This field may not be blank."
		}
		if f.MaxLen > 0 && utf8.RuneCountInString(s) > f.MaxLen {
			return fmt.Sprintf("Ensure this field has no more than %d characters.", f.MaxLen)
		}
	default:
		var n float64
		switch x := v.(type) {
		case int:
			n = float64(x)
		case float64:
			n = x
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "A valid number is required."
		}
		if n < f.Min {
			return fmt.Sprintf("Ensure this value is greater than or equal to %s.", formatBound(f.Min))
		}
		if f.HasMax && n > f.Max {
			return fmt.Sprintf("Ensure this value is less than or equal to %s.", formatBound(f.Max))
		}
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FromMap builds a Row from loosely typed input, such as a decoded JSON
// object. The key set must match the schema exactly: missing, unexpected
// or mistyped values fail with InvalidFeatureSchema. Range checks are left
// to Validate.
func FromMap(m map[string]any) (Row, error) {
	fields := make(map[string][]string)

	for key := range m {
		if _, ok := Lookup(key); !ok {
			fields[key] = append(fields[key], "Unexpected field.")
		}
	}

	var r Row
	for _, f := range Fields {
		raw, ok := m[f.Name]
		if !ok || raw == nil {
			fields[f.Name] = append(fields[f.Name], "This field is required.")
			continue
		}
		if msg := r.set(f, raw); msg != "" {
			fields[f.Name] = append(fields[f.Name], msg)
		}
	}

	if len(fields) > 0 {
		return Row{}, &errs.Error{
			Code:    errs.CodeInvalidFeatureSchema,
			Message: "features do not match schema",
			Fields:  fields,
		}
	}
	return r, nil
}

func (r *Row) set(f Field, raw any) string {
	switch f.Kind {
	case KindCategorical:
		s, ok := raw.(string)
		if !ok {
			return "Not a valid string."
		}
		switch f.Name {
		case Country:
			r.Country = s
		case City:
			r.City = s
		}
	case KindInt:
		n, ok := asInt(raw)
		if !ok {
			return "A valid integer is required."
		}
		switch f.Name {
		case Age:
			r.Age = n
		case AccountAgeDays:
			r.AccountAgeDays = n
		case PurchasesLast12Months:
			r.PurchasesLast12Months = n
		case CanceledOrders:
			r.CanceledOrders = n
		case ResaleReportsCount:
			r.ResaleReportsCount = n
		}
	case KindFloat:
		x, ok := asFloat(raw)
		if !ok {
			return "A valid number is required."
		}
		switch f.Name {
		case TicketsPerOrderAvg:
			r.TicketsPerOrderAvg = x
		case DistanceToVenueKm:
			r.DistanceToVenueKm = x
		case PaymentFailuresRatio:
			r.PaymentFailuresRatio = x
		case EventAffinityScore:
			r.EventAffinityScore = x
		case NightPurchaseRatio:
			r.NightPurchaseRatio = x
		case AttendanceRate:
			r.AttendanceRate = x
		}
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int cannot hold.
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
		// "12.0" and "1e3" are integral but not Int64 syntax.
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return asInt(f)
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Package feature defines the canonical feature schema shared by dataset
// synthesis, training and inference. Field set and order are fixed; every
// component derives its column layout from Fields.
package feature

// Kind is the value type of a feature.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindCategorical
)

// String returns the string representation.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Field describes one feature and its valid range.
type Field struct {
	Name string
	Kind Kind
	// Min and Max bound numeric values. HasMax is false for open-ended fields.
	Min    float64
	Max    float64
	HasMax bool
	// MaxLen bounds categorical values.
	MaxLen int
}

// Feature names.
const (
	Age                   = "age"
	Country               = "country"
	City                  = "city"
	AccountAgeDays        = "account_age_days"
	PurchasesLast12Months = "purchases_last_12_months"
	CanceledOrders        = "canceled_orders"
	TicketsPerOrderAvg    = "tickets_per_order_avg"
	DistanceToVenueKm     = "distance_to_venue_km"
	PaymentFailuresRatio  = "payment_failures_ratio"
	EventAffinityScore    = "event_affinity_score"
	NightPurchaseRatio    = "night_purchase_ratio"
	ResaleReportsCount    = "resale_reports_count"
	AttendanceRate        = "attendance_rate"
)

// Fields is the schema in declaration order.
var Fields = []Field{
	{Name: Age, Kind: KindInt, Min: 13, Max: 100, HasMax: true},
	{Name: Country, Kind: KindCategorical, MaxLen: 64},
	{Name: City, Kind: KindCategorical, MaxLen: 128},
	{Name: AccountAgeDays, Kind: KindInt},
	{Name: PurchasesLast12Months, Kind: KindInt},
	{Name: CanceledOrders, Kind: KindInt},
	{Name: TicketsPerOrderAvg, Kind: KindFloat},
	{Name: DistanceToVenueKm, Kind: KindFloat},
	{Name: PaymentFailuresRatio, Kind: KindFloat, Max: 1, HasMax: true},
	{Name: EventAffinityScore, Kind: KindFloat, Max: 1, HasMax: true},
	{Name: NightPurchaseRatio, Kind: KindFloat, Max: 1, HasMax: true},
	{Name: ResaleReportsCount, Kind: KindInt},
	{Name: AttendanceRate, Kind: KindFloat, Max: 1, HasMax: true},
}

// NumericNames lists the numeric features in declaration order. This is
// the column order of the standardized block.
var NumericNames = []string{
	Age,
	AccountAgeDays,
	PurchasesLast12Months,
	CanceledOrders,
	TicketsPerOrderAvg,
	DistanceToVenueKm,
	PaymentFailuresRatio,
	EventAffinityScore,
	NightPurchaseRatio,
	ResaleReportsCount,
	AttendanceRate,
}

// CategoricalNames lists the categorical features in encoding order.
var CategoricalNames = []string{Country, City}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f
	}
	return m
}()

// Lookup returns the field with the given name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

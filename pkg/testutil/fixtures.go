package testutil

import (
	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/feature"
)

// Fixed UUIDs for deterministic testing
var (
	TestProfileID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	TestPredictionID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// TestEmail is a valid buyer email.
const TestEmail = "fan@example.com"

// SampleFeatures returns a complete in-range feature row for a loyal
// local buyer.
func SampleFeatures() feature.Row {
	return feature.Row{
		Age:                   29,
		Country:               "CL",
		City:                  "Santiago",
		AccountAgeDays:        950,
		PurchasesLast12Months: 8,
		CanceledOrders:        0,
		TicketsPerOrderAvg:    1.4,
		DistanceToVenueKm:     12.5,
		PaymentFailuresRatio:  0.02,
		EventAffinityScore:    0.91,
		NightPurchaseRatio:    0.12,
		ResaleReportsCount:    0,
		AttendanceRate:        0.88,
	}
}

// ScoreRequestBody returns a decoded JSON score request for email with the
// sample features.
func ScoreRequestBody(email string) map[string]any {
	body := SampleFeatures().Map()
	body["email"] = email
	return body
}

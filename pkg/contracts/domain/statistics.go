package domain

// AgeBucketCount is the population of one age range.
type AgeBucketCount struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// MonthlyServiceCount is the joined per-month family-service aggregate.
// Patients with no service rows contribute nothing here while still
// appearing in TotalPatients.
type MonthlyServiceCount struct {
	YearMonth     string `json:"year_month"`
	RecordCount   int    `json:"record_count"`
	ServiceCount  int    `json:"service_count"`
	ResidenceDays int    `json:"residence_days"`
}

// Statistics is the aggregation result. The invariant holds that the
// sum of AgeBuckets counts never exceeds TotalPatients; the difference
// is exactly the number of patients with an unknown birth date.
type Statistics struct {
	ReferenceDate  string                `json:"reference_date"`
	TotalPatients  int                   `json:"total_patients"`
	KnownAges      int                   `json:"known_ages"`
	AgeBuckets     []AgeBucketCount      `json:"age_buckets"`
	GenderCounts   map[string]int        `json:"gender_counts,omitempty"`
	ServiceByMonth []MonthlyServiceCount `json:"service_by_month,omitempty"`
}

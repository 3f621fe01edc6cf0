package compliance

// =============================================================================
// AGING BUCKETS - Range partition on days delinquent
// =============================================================================
// The buckets partition the delinquent population completely: every
// day-count lands in exactly one bucket, with no overlap and no gap at the
// 0/30/60/90 boundaries.

type Bucket string

const (
	BucketCurrent Bucket = "current" // days <= 0
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket61To90  Bucket = "61-90"
	BucketOver90  Bucket = "90+"
)

// Buckets lists all aging buckets in severity order.
func Buckets() []Bucket {
	return []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}
}

// BucketFor classifies a delinquency day-count.
func BucketFor(daysDelinquent int) Bucket {
	switch {
	case daysDelinquent <= 0:
		return BucketCurrent
	case daysDelinquent <= 30:
		return Bucket1To30
	case daysDelinquent <= 60:
		return Bucket31To60
	case daysDelinquent <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

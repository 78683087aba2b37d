package service

import "math"

// Rating buckets on the canonical 10-point scale: 9-10 promoter,
// 7-8 passive, everything below detractor.
const (
	BucketPromoter  = "promoter"
	BucketPassive   = "passive"
	BucketDetractor = "detractor"
)

// RatingBucket classifies a rating given on a 1..scaleMax linear scale.
// Scales other than ten points are rescaled to the ten-point scale before
// bucketing.
func RatingBucket(rating, scaleMax int) string {
	normalized := float64(rating)
	if scaleMax != 10 && scaleMax > 0 {
		normalized = float64(rating) * 10.0 / float64(scaleMax)
	}

	switch {
	case normalized >= 9:
		return BucketPromoter
	case normalized >= 7:
		return BucketPassive
	default:
		return BucketDetractor
	}
}

// RatingGroupFactors returns the per-bucket increment (one of which is 1,
// the others 0) a single rating contributes to the survey counters.
func RatingGroupFactors(rating, scaleMax int) (promoter, passive, detractor int) {
	switch RatingBucket(rating, scaleMax) {
	case BucketPromoter:
		promoter = 1
	case BucketPassive:
		passive = 1
	default:
		detractor = 1
	}
	return promoter, passive, detractor
}

// ComputeNPS reduces classified rating counts to a Net Promoter Score in
// [-100, 100]. With no ratings at all the score is undefined and ok is
// false; callers render that as "-", never as zero.
func ComputeNPS(promoters, passives, detractors int64) (score int, ok bool) {
	total := promoters + passives + detractors
	if total == 0 {
		return 0, false
	}

	promoterShare := math.Round(100 * float64(promoters) / float64(total))
	detractorShare := math.Round(100 * float64(detractors) / float64(total))
	return int(promoterShare - detractorShare), true
}

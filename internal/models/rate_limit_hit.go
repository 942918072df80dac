package models

// RateLimitHit is one counted event of the database-backed sliding window store.
type RateLimitHit struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Bucket string `gorm:"size:256;not null;index:idx_rate_limit_hits_bucket_at,priority:1"`
	HitAt  int64  `gorm:"not null;index:idx_rate_limit_hits_bucket_at,priority:2;index"`
}

// RateLimitBucket is the per-key lock row of the database-backed store. Every window evaluation
// upserts it first, which serialises concurrent checks on the same key.
type RateLimitBucket struct {
	Bucket    string `gorm:"primaryKey;size:256"`
	TouchedAt int64  `gorm:"not null;index"`
}

package model

type FeatureCategory string

const (
	CategoryTechnical FeatureCategory = "technical"
	CategoryRisk      FeatureCategory = "risk"
	CategoryValuation FeatureCategory = "valuation"
)

func (c FeatureCategory) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryRisk, CategoryValuation:
		return true
	}
	return false
}

type FeatureRecord struct {
	EntityID    string          `json:"entity_id"`
	FeatureName string          `json:"feature_name"`
	Value       float64         `json:"value"`
	Category    FeatureCategory `json:"category"`
	ComputedAt  int64           `json:"computed_at"`
	ExpireAt    int64           `json:"expire_at"`
}

func (r *FeatureRecord) Key() string {
	return r.EntityID + ":" + r.FeatureName
}

// Expired reports whether the record is past its freshness window at
// the given unix time. Expired records are kept for diagnostics but
// never served.
func (r *FeatureRecord) Expired(now int64) bool {
	return r.ExpireAt <= now
}

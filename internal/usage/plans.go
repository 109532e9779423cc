package usage

import "github.com/aznory/listinglens/internal/models"

func limit(n int) models.FeatureLimit { return &n }

// planEntitlements is the monthly quota table. A nil limit is unlimited; a
// zero limit means the feature is unavailable on the tier.
var planEntitlements = map[models.PlanKey]models.Entitlements{
	models.PlanFree: {
		Plan: models.PlanFree,
		Limits: map[models.Feature]models.FeatureLimit{
			models.FeatureScore:     limit(5),
			models.FeatureReasoning: limit(0),
			models.FeatureImprove:   limit(0),
		},
	},
	models.PlanSimple: {
		Plan: models.PlanSimple,
		Limits: map[models.Feature]models.FeatureLimit{
			models.FeatureScore:     nil,
			models.FeatureReasoning: limit(10),
			models.FeatureImprove:   limit(3),
		},
	},
	models.PlanPro: {
		Plan: models.PlanPro,
		Limits: map[models.Feature]models.FeatureLimit{
			models.FeatureScore:     nil,
			models.FeatureReasoning: limit(30),
			models.FeatureImprove:   limit(20),
		},
	},
}

// EntitlementsFor returns the quota table row for a plan. Unknown plans get
// FREE entitlements, the most restrictive tier.
func EntitlementsFor(plan models.PlanKey) models.Entitlements {
	if ent, ok := planEntitlements[plan]; ok {
		return ent
	}
	return planEntitlements[models.PlanFree]
}

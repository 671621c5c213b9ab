package model

// Factor names one dimension of compatibility.
type Factor string

const (
	FactorSpecialization Factor = "specialization"
	FactorCommunication  Factor = "communication"
	FactorAvailability   Factor = "availability"
	FactorLocation       Factor = "location"
	FactorCapacity       Factor = "capacity"
	FactorTags           Factor = "tags"
	FactorRecency        Factor = "recency"
	FactorReputation     Factor = "reputation"
)

// Explanation tells a caller why a candidate scored the way it did.
type Explanation struct {
	MatchingAttributes []string `json:"matching_attributes"`
	Strengths          []string `json:"strengths"`
	Considerations     []string `json:"considerations"`
}

// MatchResult is the outcome of scoring one candidate for one requester.
type MatchResult struct {
	CandidateID     string             `json:"candidate_id"`
	OverallScore    float64            `json:"overall_score"`
	PerFactorScores map[Factor]float64 `json:"per_factor_scores"`
	Disqualified    bool               `json:"disqualified"`
	Explanation     Explanation        `json:"explanation"`
}

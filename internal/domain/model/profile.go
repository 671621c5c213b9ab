package model

import "time"

// Proficiency is a candidate's self-reported proficiency in a communication mode.
type Proficiency int

const (
	ProficiencyUnset Proficiency = iota
	ProficiencyBasic
	ProficiencyConversational
	ProficiencyFluent
	ProficiencyNative
)

// Urgency expresses how soon a requester needs a match.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Availability maps a day name ("monday") to the open slots on that day ("09:00").
type Availability map[string][]string

// Capacity is how many active engagements a candidate can hold.
type Capacity struct {
	Max     int `json:"max" koanf:"max"`
	Current int `json:"current" koanf:"current"`
}

// Full reports whether no headroom is left.
func (c Capacity) Full() bool {
	return c.Current >= c.Max
}

// Attributes describe a candidate (a counselor, a mentor).
type Attributes struct {
	Specializations    []string     `json:"specializations" koanf:"specializations"`
	Languages          []string     `json:"languages" koanf:"languages"`
	CommunicationModes []string     `json:"communication_modes" koanf:"communication_modes"`
	Proficiency        Proficiency  `json:"proficiency" koanf:"proficiency"`
	Availability       Availability `json:"availability" koanf:"availability"`
	Location           string       `json:"location" koanf:"location"`
	Capacity           Capacity     `json:"capacity" koanf:"capacity"`
	QualityRating      float64      `json:"quality_rating" koanf:"quality_rating"`
	YearsExperience    int          `json:"years_experience" koanf:"years_experience"`
	IsActive           bool         `json:"is_active" koanf:"is_active"`
	Tags               []string     `json:"tags" koanf:"tags"`
	LastActiveAt       time.Time    `json:"last_active_at" koanf:"last_active_at"`
	ReputationScore    float64      `json:"reputation_score" koanf:"reputation_score"`
}

// CandidateProfile is the thing being matched against.
type CandidateProfile struct {
	ID         string     `json:"id" koanf:"id"`
	Attributes Attributes `json:"attributes" koanf:"attributes"`
}

// Preferences mirror Attributes as the requester's wishes.
type Preferences struct {
	PrimaryNeed    string       `json:"primary_need" koanf:"primary_need"`
	SecondaryNeeds []string     `json:"secondary_needs" koanf:"secondary_needs"`
	Languages      []string     `json:"languages" koanf:"languages"`
	RequiredMode   string       `json:"required_mode" koanf:"required_mode"`
	Availability   Availability `json:"availability" koanf:"availability"`
	Location       string       `json:"location" koanf:"location"`
	Tags           []string     `json:"tags" koanf:"tags"`
}

// RequesterProfile is the thing seeking a match or opportunities.
type RequesterProfile struct {
	ID              string      `json:"id" koanf:"id"`
	Desired         Preferences `json:"desired" koanf:"desired"`
	ReputationScore float64     `json:"reputation_score" koanf:"reputation_score"`
	Urgency         Urgency     `json:"urgency" koanf:"urgency"`
	LookingFor      []string    `json:"looking_for" koanf:"looking_for"`
	Tags            []string    `json:"tags" koanf:"tags"`
	Segments        []string    `json:"segments" koanf:"segments"`
}

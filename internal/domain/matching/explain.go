package matching

import (
	"fmt"

	"github.com/okian/rapport/internal/domain/model"
)

const (
	strongFactor = 80.0
	weakFactor   = 40.0
)

var factorStrengths = map[model.Factor]string{
	model.FactorSpecialization: "strong expertise in the requested area",
	model.FactorCommunication:  "communicates in the preferred way",
	model.FactorAvailability:   "schedule lines up well",
	model.FactorLocation:       "same location",
	model.FactorCapacity:       "plenty of open capacity",
	model.FactorTags:           "shares most interests",
	model.FactorRecency:        "recently active",
	model.FactorReputation:     "well regarded in the community",
}

var factorConsiderations = map[model.Factor]string{
	model.FactorSpecialization: "limited overlap with the requested expertise",
	model.FactorCommunication:  "communication needs may not be met",
	model.FactorAvailability:   "little schedule overlap",
	model.FactorLocation:       "different location",
	model.FactorCapacity:       "nearly at capacity",
	model.FactorTags:           "few shared interests",
	model.FactorRecency:        "not active lately",
	model.FactorReputation:     "limited community track record",
}

func explain(req model.RequesterProfile, c model.CandidateProfile, scores map[model.Factor]float64) model.Explanation {
	ex := model.Explanation{
		MatchingAttributes: matchingAttributes(req, c),
		Strengths:          []string{},
		Considerations:     []string{},
	}
	for _, f := range Weights(scores).Factors() {
		s := scores[f]
		switch {
		case s >= strongFactor:
			ex.Strengths = append(ex.Strengths, factorStrengths[f])
		case s < weakFactor:
			ex.Considerations = append(ex.Considerations, factorConsiderations[f])
		}
	}
	if c.Attributes.QualityRating >= qualityBonusThreshold {
		ex.Strengths = append(ex.Strengths, fmt.Sprintf("highly rated (%.1f/5)", c.Attributes.QualityRating))
	}
	if c.Attributes.YearsExperience >= experienceBonusYears {
		ex.Strengths = append(ex.Strengths, fmt.Sprintf("%d years of experience", c.Attributes.YearsExperience))
	}
	return ex
}

func matchingAttributes(req model.RequesterProfile, c model.CandidateProfile) []string {
	out := []string{}
	d, a := req.Desired, c.Attributes

	specs := newSet(a.Specializations)
	if specs.has(d.PrimaryNeed) {
		out = append(out, "specialization:"+normalize(d.PrimaryNeed))
	}
	for _, n := range d.SecondaryNeeds {
		if specs.has(n) {
			out = append(out, "specialization:"+normalize(n))
		}
	}
	if d.RequiredMode != "" && newSet(a.CommunicationModes).has(d.RequiredMode) {
		out = append(out, "mode:"+normalize(d.RequiredMode))
	}
	langs := newSet(a.Languages)
	for _, l := range d.Languages {
		if langs.has(l) {
			out = append(out, "language:"+normalize(l))
		}
	}
	if loc := normalize(d.Location); loc != "" && loc == normalize(a.Location) {
		out = append(out, "location:"+loc)
	}
	tags := newSet(a.Tags)
	for _, t := range d.Tags {
		if tags.has(t) {
			out = append(out, "tag:"+normalize(t))
		}
	}
	return out
}

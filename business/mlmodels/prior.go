package mlmodels

import (
	"fmt"
	"math/rand"
)

// ScheduleRelationshipPrior is the categorical weight distribution used to
// sample a stand-in schedule relationship feature when no live
// schedule-adherence data is available at prediction time. The weights come
// from the observed frequency of the Scheduled relationship in the training
// data.
type ScheduleRelationshipPrior struct {
	scheduledWeight    float64
	notScheduledWeight float64
}

// MakeScheduleRelationshipPrior validates and builds the prior.
func MakeScheduleRelationshipPrior(scheduledWeight float64, notScheduledWeight float64) (*ScheduleRelationshipPrior, error) {
	if scheduledWeight < 0 || notScheduledWeight < 0 || scheduledWeight+notScheduledWeight <= 0 {
		return nil, fmt.Errorf("invalid schedule relationship weights %g/%g",
			scheduledWeight, notScheduledWeight)
	}
	return &ScheduleRelationshipPrior{
		scheduledWeight:    scheduledWeight,
		notScheduledWeight: notScheduledWeight,
	}, nil
}

// Sample draws the schedule relationship indicator, 1 for Scheduled and 0
// otherwise, from rng. The rng is owned by the request so draws stay
// reproducible under test seeding.
func (p *ScheduleRelationshipPrior) Sample(rng *rand.Rand) float64 {
	total := p.scheduledWeight + p.notScheduledWeight
	if rng.Float64()*total < p.scheduledWeight {
		return 1
	}
	return 0
}

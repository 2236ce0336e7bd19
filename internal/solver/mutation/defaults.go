package mutation

import "vrpcore/internal/models"

// NewDefaultRuin mixes neighbour, related, random job and random route removals.
func NewDefaultRuin(limit JobRemovalLimit) *CompositeRuin {
	return NewCompositeRuin([]RuinGroup{
		{Name: "neighbour", Ruins: []ProbableRuin{{Ruin: NewNeighbourRemoval(limit), Probability: 1}, {Ruin: NewRandomJobRemoval(limit), Probability: 0.1}}, Weight: 100},
		{Name: "related", Ruins: []ProbableRuin{{Ruin: NewRelatedRemoval(limit, DefaultTimeWindowWeight), Probability: 1}, {Ruin: NewRandomJobRemoval(limit), Probability: 0.1}}, Weight: 50},
		{Name: "random-job", Ruins: []ProbableRuin{{Ruin: NewRandomJobRemoval(limit), Probability: 1}, {Ruin: NewRandomRouteRemoval(limit), Probability: 0.1}}, Weight: 10},
		{Name: "random-route", Ruins: []ProbableRuin{{Ruin: NewRandomRouteRemoval(limit), Probability: 1}, {Ruin: NewNeighbourRemoval(limit), Probability: 0.1}}, Weight: 5},
	})
}

// NewDefaultRecreate favours cheapest insertion and mixes in regret, perturbation and gaps.
func NewDefaultRecreate(perturbation *RecreateWithPerturbation) *AdaptiveRecreate {
	return NewAdaptiveRecreate([]NamedRecreate{
		{Name: "cheapest", Recreate: NewRecreateWithCheapest(), Weight: 100},
		{Name: "regret", Recreate: NewRecreateWithRegret(), Weight: 40},
		{Name: "perturbation", Recreate: perturbation, Weight: 20},
		{Name: "gaps", Recreate: NewRecreateWithGaps(2), Weight: 5},
	})
}

// NewDefaultMutationWith combines the default ruin and recreate mixes around the given
// perturbation and polishes some children with local search.
func NewDefaultMutationWith(perturbation *RecreateWithPerturbation) *RuinAndRecreate {
	return NewRuinAndRecreate(NewDefaultRuin(DefaultJobRemovalLimit()), NewDefaultRecreate(perturbation)).
		WithLocalSearch(NewLocalSearch(DefaultLocalSearchAttempts), DefaultLocalSearchProbability)
}

// NewDefaultMutation uses the default perturbation parameters.
func NewDefaultMutation(random models.Random) *RuinAndRecreate {
	return NewDefaultMutationWith(NewRecreateWithPerturbationDefaults(random))
}

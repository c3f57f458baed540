package configclient

import (
	"fmt"
	"hash/fnv"
)

// FlagDefinition is a feature flag as delivered by the configuration service.
type FlagDefinition struct {
	Key               string `json:"key"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
}

// Evaluate decides the flag for a user. Disabled flags are always off and a
// full rollout is always on; between those, the user is hashed into one of
// 100 buckets and the flag is on for buckets below the rollout percentage.
// The same user therefore gets the same answer until the rollout changes,
// and raising the percentage never turns the flag off for anyone.
func (f FlagDefinition) Evaluate(userID string) bool {
	if !f.Enabled {
		return false
	}
	if f.RolloutPercentage >= 100 {
		return true
	}
	if f.RolloutPercentage <= 0 {
		return false
	}
	return int(bucketOf(f.Key, userID)) < f.RolloutPercentage
}

// bucketOf assigns a stable bucket in [0, 100). The hash input and function
// are fixed; changing either would reshuffle every user's bucket across a
// deploy.
func bucketOf(flagKey, userID string) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%s", flagKey, userID)
	return h.Sum32() % 100
}

package badge

import "time"

// Condition types understood by the checker. Badges with any other
// condition type stay locked until the rule is implemented.
const (
	ConditionDistance = "distance"
	ConditionStreets  = "streets"
	ConditionCities   = "cities"
)

type Badge struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	ConditionType  string `json:"condition_type"`
	ConditionValue int    `json:"condition_value"`
}

// UserBadge is an unlocked badge with its unlock timestamp.
type UserBadge struct {
	Badge
	UnlockedAt time.Time `json:"unlocked_at"`
}

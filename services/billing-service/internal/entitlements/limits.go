package entitlements

// Limits represents the scheduling entitlements derived from a subscription
// tier. Keep this small and stable: the availability side relies on these
// limits to enforce behavior.
type Limits struct {
	Tier                string `json:"tier"`
	MaxActiveRules      int32  `json:"max_active_rules"`
	MaxFutureExceptions int32  `json:"max_future_exceptions"`
	MaxAdvanceDays      int32  `json:"max_advance_days"`
}

func LimitsForTier(tier string) Limits {
	switch tier {
	case "pro":
		return Limits{
			Tier:                "pro",
			MaxActiveRules:      50,
			MaxFutureExceptions: 100,
			MaxAdvanceDays:      90,
		}
	case "studio":
		return Limits{
			Tier:                "studio",
			MaxActiveRules:      200,
			MaxFutureExceptions: 500,
			MaxAdvanceDays:      365,
		}
	default:
		return Limits{
			Tier:                "free",
			MaxActiveRules:      10,
			MaxFutureExceptions: 10,
			MaxAdvanceDays:      30,
		}
	}
}

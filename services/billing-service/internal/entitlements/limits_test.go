package entitlements

import "testing"

func TestLimitsForTier(t *testing.T) {
	if got := LimitsForTier("pro"); got.MaxActiveRules != 50 || got.MaxFutureExceptions != 100 || got.MaxAdvanceDays != 90 {
		t.Fatalf("pro limits = %+v", got)
	}
	if got := LimitsForTier("studio"); got.MaxActiveRules != 200 || got.MaxAdvanceDays != 365 {
		t.Fatalf("studio limits = %+v", got)
	}
}

func TestLimitsForTierUnknownFallsBackToFree(t *testing.T) {
	got := LimitsForTier("enterprise")
	if got.Tier != "free" || got.MaxActiveRules != 10 || got.MaxAdvanceDays != 30 {
		t.Fatalf("unknown tier limits = %+v", got)
	}
}

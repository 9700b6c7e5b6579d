package entitlements

import "testing"

func TestLimitsForTier(t *testing.T) {
	if got := LimitsForTier("pro"); got.MaxActiveRules != 50 || got.MaxAdvanceDays != 90 {
		t.Fatalf("pro limits = %+v", got)
	}
	if got := LimitsForTier("studio"); got.MaxFutureExceptions != 500 {
		t.Fatalf("studio limits = %+v", got)
	}
}

func TestLimitsForTierUnknownFallsBackToFree(t *testing.T) {
	got := LimitsForTier("platinum")
	if got.Tier != "free" || got.MaxActiveRules != 10 {
		t.Fatalf("unknown tier limits = %+v", got)
	}
}

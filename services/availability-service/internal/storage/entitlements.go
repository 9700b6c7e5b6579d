package storage

import (
	"context"
)

// TierForBuilder returns the cached plan tier, defaulting to free when
// billing has never told us about this builder.
func (r *Repository) TierForBuilder(ctx context.Context, builderID string) (string, error) {
	var tier string
	err := r.pool.QueryRow(ctx, `
		SELECT tier FROM builder_entitlements WHERE builder_id = $1
	`, builderID).Scan(&tier)
	if isNoRows(err) {
		return "free", nil
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

// UpsertEntitlements records the tier projected from billing events.
func (r *Repository) UpsertEntitlements(ctx context.Context, builderID, tier string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO builder_entitlements (builder_id, tier, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (builder_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = now()
	`, builderID, tier)
	return err
}

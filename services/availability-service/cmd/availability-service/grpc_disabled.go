//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *schedule.Engine, _ *storage.Repository) error {
	return nil
}

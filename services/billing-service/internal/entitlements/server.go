//go:build protogen

package entitlements

import (
	"context"

	entitlementsv1 "github.com/buildlance/buildlance/protos/gen/entitlements/v1"
	"github.com/buildlance/buildlance/services/billing-service/internal/storage"
	"google.golang.org/grpc"
)

type server struct {
	entitlementsv1.UnimplementedEntitlementsServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	entitlementsv1.RegisterEntitlementsServiceServer(grpcServer, &server{repo: repo})
}

func (s *server) GetEntitlements(ctx context.Context, req *entitlementsv1.EntitlementsRequest) (*entitlementsv1.EntitlementsResponse, error) {
	// Repo errors and missing rows both answer free tier; the response stays
	// stable for callers that gate writes on it.
	limits := LimitsForTier("free")
	if s.repo != nil && req.GetBuilderId() != "" {
		sub, err := s.repo.GetSubscription(ctx, req.GetBuilderId())
		if err == nil && sub.Status == "active" {
			limits = LimitsForTier(sub.Tier)
		}
	}
	return &entitlementsv1.EntitlementsResponse{
		Tier:                limits.Tier,
		MaxActiveRules:      uint32(limits.MaxActiveRules),
		MaxFutureExceptions: uint32(limits.MaxFutureExceptions),
		MaxAdvanceDays:      uint32(limits.MaxAdvanceDays),
	}, nil
}

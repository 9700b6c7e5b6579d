//go:build protogen

package grpcserver

import (
	"context"
	"time"

	availabilityv1 "github.com/buildlance/buildlance/protos/gen/availability/v1"
	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type server struct {
	availabilityv1.UnimplementedAvailabilityServiceServer
	engine *schedule.Engine
	repo   *storage.Repository
}

func Register(grpcServer *grpc.Server, engine *schedule.Engine, repo *storage.Repository) {
	availabilityv1.RegisterAvailabilityServiceServer(grpcServer, &server{engine: engine, repo: repo})
}

func (s *server) ResolveWindows(ctx context.Context, req *availabilityv1.ResolveWindowsRequest) (*availabilityv1.ResolveWindowsResponse, error) {
	builderID := req.GetBuilderId()
	if builderID == "" {
		return nil, status.Error(codes.InvalidArgument, "builder_id is required")
	}

	var from, to time.Time
	if raw := req.GetFrom(); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "from must be a YYYY-MM-DD calendar date")
		}
		from = parsed
	}
	if raw := req.GetTo(); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "to must be a YYYY-MM-DD calendar date")
		}
		to = parsed
	}

	windows, err := s.engine.Resolve(ctx, builderID, from, to, time.Now().UTC())
	if err != nil {
		if schedule.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, "window resolution failed")
	}

	resp := &availabilityv1.ResolveWindowsResponse{BuilderId: builderID}
	for _, win := range windows {
		resp.Windows = append(resp.Windows, &availabilityv1.Window{
			Date:    win.Date,
			StartAt: timestamppb.New(win.Start),
			EndAt:   timestamppb.New(win.End),
		})
	}
	return resp, nil
}

func (s *server) MarkSlotBooked(ctx context.Context, req *availabilityv1.MarkSlotBookedRequest) (*availabilityv1.MarkSlotBookedResponse, error) {
	slotID := req.GetSlotId()
	if slotID == "" {
		return nil, status.Error(codes.InvalidArgument, "slot_id is required")
	}

	if err := s.repo.MarkSlotBooked(ctx, slotID); err != nil {
		switch {
		case schedule.IsNotFound(err):
			return nil, status.Error(codes.NotFound, err.Error())
		case schedule.IsConflict(err):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		default:
			return nil, status.Error(codes.Internal, "slot booking failed")
		}
	}
	return &availabilityv1.MarkSlotBookedResponse{SlotId: slotID, Booked: true}, nil
}

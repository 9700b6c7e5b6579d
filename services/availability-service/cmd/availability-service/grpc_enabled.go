//go:build protogen

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/buildlance/buildlance/libs/config"
	"github.com/buildlance/buildlance/libs/grpcx"
	"github.com/buildlance/buildlance/services/availability-service/internal/grpcserver"
	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, engine *schedule.Engine, repo *storage.Repository) error {
	port, err := config.Port("GRPC_PORT", "9092")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	grpcserver.Register(srv, engine, repo)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}

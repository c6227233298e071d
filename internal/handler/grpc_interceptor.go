package handler

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// requestIDKey is the metadata key carrying a caller-supplied request id.
const requestIDKey = "x-request-id"

// UnaryServerInterceptor logs each RPC with its request id and converts
// domain errors into gRPC statuses. Internal causes are logged, never
// returned to the caller.
func UnaryServerInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDKey); len(ids) > 0 {
				requestID = ids[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, requestID))

		reqLog := log.With().Str("request_id", requestID).Str("method", info.FullMethod).Logger()
		resp, err := handler(reqLog.WithContext(ctx), req)

		err = toGRPCError(err)
		code := status.Code(err)
		evt := reqLog.Debug()
		if code != codes.OK {
			evt = reqLog.Warn().Err(err)
		}
		evt.Str("code", code.String()).Dur("duration", time.Since(start)).Msg("rpc")

		return resp, err
	}
}

func toGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var domainErr *errors.Error
	if !stderrors.As(err, &domainErr) {
		return status.Error(errors.ErrCodeInternal.GRPCCode(), errors.PublicMessage(err))
	}
	return status.Error(domainErr.Code.GRPCCode(), errors.PublicMessage(err))
}

package rpcapi

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"ascnd/core"
	"ascnd/engine"
)

// toConnectError maps service failures onto RPC codes. Unexpected errors are
// logged and hidden behind a generic internal error.
func toConnectError(ctx context.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, engine.ErrUnknownLeaderboard):
		return newError(connect.CodeNotFound, err.Error(), map[string]any{"reason": "UNKNOWN_LEADERBOARD"})
	case errors.Is(err, engine.ErrUnknownView):
		return newError(connect.CodeNotFound, err.Error(), map[string]any{"reason": "UNKNOWN_VIEW"})
	case errors.Is(err, core.ErrInvalidPeriod):
		return newError(connect.CodeInvalidArgument, err.Error(), map[string]any{"reason": "INVALID_PERIOD", "field": "period"})
	case errors.Is(err, engine.ErrNoPreviousPeriod):
		return newError(connect.CodeInvalidArgument, err.Error(), map[string]any{"reason": "NO_PREVIOUS_PERIOD", "field": "period"})
	case errors.Is(err, engine.ErrInvalidRequest):
		return newError(connect.CodeInvalidArgument, err.Error(), map[string]any{"reason": "INVALID_REQUEST"})
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	logger.ErrorContext(ctx, "internal error", "error", err)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// newError builds a connect error carrying fields as a structpb.Struct detail.
func newError(code connect.Code, msg string, fields map[string]any) *connect.Error {
	cerr := connect.NewError(code, errors.New(msg))
	if s, err := structpb.NewStruct(fields); err == nil {
		if detail, err := connect.NewErrorDetail(s); err == nil {
			cerr.AddDetail(detail)
		}
	}
	return cerr
}

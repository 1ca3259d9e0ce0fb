package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// withSpan runs op inside a span named after the operation. Unexpected errors
// are logged and counted; the caller-facing sentinels are only recorded on
// the span.
func withSpan[T any](
	s *Service,
	ctx context.Context,
	operation string,
	userID string,
	op func(ctx context.Context, span trace.Span) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, "BoardService."+operation, trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("user.id", userID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operation, r)
			s.logger.Error(ctx, "recovered panic",
				logger.String("operation", operation),
				logger.String("user", userID),
				logger.Error(err),
			)
			metrics.RecordErrorByComponent("service", "panic")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var zero T
			result = zero
		}
	}()

	result, err = op(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !expected(err) {
			s.logger.Error(ctx, "operation failed",
				logger.String("operation", operation),
				logger.String("user", userID),
				logger.Error(err),
			)
			metrics.RecordErrorByComponent("service", operation)
		}
	}
	return result, err
}

// expected reports errors that describe the caller's request rather than a
// fault in the service.
func expected(err error) bool {
	for _, target := range []error{
		ErrInvalidUser, ErrInvalidInput, ErrBoardNotFound, ErrPlayerNotFound,
		ErrPropNotFound, ErrUserNotFound, ErrSeasonLocked, ErrSeasonOpen,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"invoice-backend/pkg/logger"

	"go.uber.org/zap"
)

// FallbackService tries the primary provider and falls back to the secondary
// one when the primary fails.
type FallbackService struct {
	primary   InvoiceExtractor
	secondary InvoiceExtractor
	log       *zap.Logger
}

func NewFallbackService(primary, secondary InvoiceExtractor) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		log:       logger.Named("ai"),
	}
}

func (f *FallbackService) Name() string {
	switch {
	case f.primary != nil && f.secondary != nil:
		return f.primary.Name() + "+" + f.secondary.Name()
	case f.primary != nil:
		return f.primary.Name()
	case f.secondary != nil:
		return f.secondary.Name()
	}
	return "none"
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func (f *FallbackService) ExtractInvoice(ctx context.Context, text string) (*InvoiceFields, error) {
	if f.primary != nil {
		fields, err := f.primary.ExtractInvoice(ctx, text)
		if err == nil {
			return fields, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isConnectionError(err) {
			f.log.Warn("primary provider unreachable, falling back",
				zap.String("provider", f.primary.Name()), zap.Error(err))
		} else {
			f.log.Warn("primary provider failed, falling back",
				zap.String("provider", f.primary.Name()), zap.Error(err))
		}
		if f.secondary == nil {
			return nil, err
		}
	}

	if f.secondary != nil {
		fields, err := f.secondary.ExtractInvoice(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%s extraction failed: %w", f.secondary.Name(), err)
		}
		return fields, nil
	}

	return nil, fmt.Errorf("no AI provider available for invoice extraction")
}

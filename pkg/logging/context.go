package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = iota
	// proposalIDKey is the context key for the proposal being applied.
	proposalIDKey
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}

	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}

	return Default()
}

// Ctx returns a logger from the context or the default logger.
// This is a shorter alias for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithProposalID adds the proposal id to the context so every log line
// emitted during one apply invocation carries it.
func WithProposalID(ctx context.Context, proposalID string) context.Context {
	ctx = context.WithValue(ctx, proposalIDKey, proposalID)

	logger := FromContext(ctx)
	newLogger := logger.With().Str("proposal_id", proposalID).Logger()
	return WithLogger(ctx, &newLogger)
}

// ProposalID extracts the proposal id from context.
func ProposalID(ctx context.Context) string {
	if id, ok := ctx.Value(proposalIDKey).(string); ok {
		return id
	}
	return ""
}

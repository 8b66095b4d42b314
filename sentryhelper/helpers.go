// Package sentryhelper provides utilities for Sentry transaction and scope management.
// Each identification run gets its own cloned hub so breadcrumbs and tags never leak
// between runs.
package sentryhelper

import (
	"context"

	sentry "github.com/getsentry/sentry-go"
)

// contextKey is used to store the cloned hub in context
type contextKey string

const hubContextKey contextKey = "sentry_hub"

// StartRunTransaction creates a new transaction with a cloned hub for one
// identification run. Returns the context with the transaction and hub, plus
// the transaction span.
func StartRunTransaction(ctx context.Context, runID string, reference string) (context.Context, *sentry.Span) {
	// Clone the hub to isolate scope (breadcrumbs, tags)
	hub := sentry.CurrentHub().Clone()

	ctx = sentry.SetHubOnContext(ctx, hub)
	ctx = context.WithValue(ctx, hubContextKey, hub)

	transaction := sentry.StartTransaction(ctx, "nowplaying.run",
		sentry.WithOpName("nowplaying.run"),
		sentry.WithTransactionSource(sentry.SourceTask),
	)

	transaction.SetTag("run_id", runID)
	transaction.SetTag("stream", reference)

	hub.Scope().SetTag("run_id", runID)
	hub.Scope().SetSpan(transaction)

	return transaction.Context(), transaction
}

// HubFromContext retrieves the cloned hub from context.
// Falls back to CurrentHub if no cloned hub is found.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub, ok := ctx.Value(hubContextKey).(*sentry.Hub); ok && hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// AddBreadcrumb adds a breadcrumb to the hub in context (isolated per run).
func AddBreadcrumb(ctx context.Context, category string, message string) {
	hub := HubFromContext(ctx)
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	}, nil)
}

// CaptureException captures an exception on the hub in context.
func CaptureException(ctx context.Context, err error) *sentry.EventID {
	hub := HubFromContext(ctx)
	return hub.CaptureException(err)
}

// CaptureMessage captures a message on the hub in context.
// Use this for warnings or informational events that aren't errors.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	hub := HubFromContext(ctx)
	return hub.CaptureMessage(message)
}

package stream

import (
	"context"
	"errors"
	"sort"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Variant names with special meaning, in the order they are preferred.
const (
	VariantAudioOnly = "audio_only"
	VariantWorst     = "worst"
	VariantBest      = "best"
)

var preferredVariants = []string{VariantAudioOnly, VariantWorst, VariantBest}

// Variant is one named rendition of a stream as reported by the provider.
type Variant struct {
	Name string
	Type string
	URL  string
}

// ResolvedStream is the media URL chosen for capture and the variant it came from.
type ResolvedStream struct {
	URL     string
	Variant string
}

// Provider lists the variants a stream reference currently offers.
type Provider interface {
	Streams(ctx context.Context, reference string) ([]Variant, error)
}

// Resolver turns a stream reference into a single capturable media URL.
type Resolver struct {
	provider Provider
	logger   *log.Entry
}

// NewResolver returns a Resolver that lists variants through provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{
		provider: provider,
		logger: log.WithFields(log.Fields{
			"module": "stream-resolver",
		}),
	}
}

// Resolve returns a directly fetchable media URL for reference. Errors are
// ErrInvalidReference, ErrStreamUnavailable or a *ResolutionError; a canceled
// context is returned unwrapped.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*ResolvedStream, error) {
	logger := r.logger.WithField("reference", reference)

	span := sentry.StartSpan(ctx, "stream.resolve")
	span.Description = "Resolve stream variants via provider"
	span.SetTag("reference", reference)
	defer span.Finish()

	variants, err := r.provider.Streams(ctx, reference)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReference):
			span.Status = sentry.SpanStatusInvalidArgument
			return nil, err
		case errors.Is(err, ErrStreamUnavailable):
			span.Status = sentry.SpanStatusNotFound
			return nil, err
		case errors.Is(err, context.Canceled):
			span.Status = sentry.SpanStatusCanceled
			return nil, err
		}
		logger.Errorf("stream provider failed: %v", err)
		span.Status = sentry.SpanStatusInternalError
		return nil, &ResolutionError{Reference: reference, Err: err}
	}

	variant, ok := SelectVariant(variants)
	if !ok {
		span.Status = sentry.SpanStatusNotFound
		return nil, ErrStreamUnavailable
	}

	logger.WithField("variant", variant.Name).Debugf("selected variant out of %d", len(variants))
	span.Status = sentry.SpanStatusOK
	span.SetData("variant", variant.Name)
	span.SetData("variant_count", len(variants))

	return &ResolvedStream{
		URL:     variant.URL,
		Variant: variant.Name,
	}, nil
}

// SelectVariant picks audio_only, then worst, then best. When none of those
// exist it falls back to the variant whose name sorts first so the choice is
// stable for identical variant sets. ok is false only for an empty set.
func SelectVariant(variants []Variant) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}

	byName := make(map[string]Variant, len(variants))
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		if _, seen := byName[v.Name]; seen {
			continue
		}
		byName[v.Name] = v
		names = append(names, v.Name)
	}

	for _, name := range preferredVariants {
		if v, ok := byName[name]; ok {
			return v, true
		}
	}

	sort.Strings(names)
	return byName[names[0]], true
}

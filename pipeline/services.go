package pipeline

import (
	"sptnr-core/config"
	"sptnr-core/externalclients/metadataa"
	"sptnr-core/externalclients/metadatab"
	"sptnr-core/externalclients/popularity"
	"sptnr-core/externalclients/scrobbles"
	"sptnr-core/library"
	"sptnr-core/ratelimiter"
	"sptnr-core/shared/logger"
	"sptnr-core/store"
)

// Services is the single explicit struct threaded through the pipeline,
// replacing the teacher's package-level singletons (spec.md §9's "Global
// mutable state" redesign flag). Everything the pipeline needs to do its
// job — config, store, rate limiter, the four external clients, and the
// library adapter — is constructed once at startup and passed down.
type Services struct {
	Config      *config.Config
	Store       *store.Store
	Limiter     *ratelimiter.Limiter
	Library     library.Library
	Popularity  *popularity.Client
	Scrobbles   *scrobbles.Client
	MetadataA   *metadataa.Client
	MetadataB   *metadatab.Client
	Logger      *logger.Tiers
}

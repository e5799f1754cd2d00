package sobject

import (
	"context"
	"net/http"

	"github.com/forcekit/sf-bulk-client/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MetadataCache caches object describe metadata between calls. A Get
// miss is signalled by returning an error; Set failures are advisory.
// Implemented by pkg/cache with a redis backend.
type MetadataCache interface {
	Get(ctx context.Context, object string) (*SObject, error)
	Set(ctx context.Context, object string, metadata *SObject) error
}

// Describer fetches object metadata from the describe endpoints,
// optionally read-through caching it.
type Describer struct {
	client *client.Client
	cache  MetadataCache
	logger zerolog.Logger
}

// NewDescriber creates a describer. The cache may be nil, in which case
// every call hits the API.
func NewDescriber(c *client.Client, cache MetadataCache) *Describer {
	return &Describer{
		client: c,
		cache:  cache,
		logger: log.With().Str("component", "sobject").Logger(),
	}
}

// Describe returns the full metadata of one object. The describe
// endpoint matches object names case-insensitively; a response for a
// different name than requested is treated as not found, mirroring the
// API's exact-name contract.
func (d *Describer) Describe(ctx context.Context, name string) (*SObject, error) {
	if d.cache != nil {
		if metadata, err := d.cache.Get(ctx, name); err == nil && metadata != nil {
			d.logger.Debug().Str("object", name).Msg("Describe cache hit")
			return metadata, nil
		}
	}

	path, err := d.client.Path(ctx, "sobjects")
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Request(ctx, http.MethodGet, path+"/"+name+"/describe", nil)
	if err != nil {
		return nil, err
	}

	var metadata SObject
	if err := client.DecodeJSON(resp, &metadata); err != nil {
		return nil, err
	}
	if metadata.Name != name {
		return nil, &client.APIError{
			Kind:    client.KindNotFound,
			Message: "sobject not found: " + name,
		}
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, name, &metadata); err != nil {
			d.logger.Warn().Err(err).Str("object", name).Msg("Describe cache store failed")
		}
	}

	return &metadata, nil
}

// List returns the global describe: summary metadata of every object in
// the org.
func (d *Describer) List(ctx context.Context) (*SObjects, error) {
	path, err := d.client.Path(ctx, "sobjects")
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Request(ctx, http.MethodGet, path+"/", nil)
	if err != nil {
		return nil, err
	}

	var objects SObjects
	if err := client.DecodeJSON(resp, &objects); err != nil {
		return nil, err
	}
	return &objects, nil
}

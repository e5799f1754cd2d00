package client

import (
	"context"
	"net/http"
)

// APIVersion describes one API version advertised by the instance.
type APIVersion struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// basePath returns the versioned service root, e.g. "/services/data/v57.0".
func (c *Client) basePath() string {
	return "/services/data/v" + c.version
}

// Resources returns the logical resource name to path map advertised by
// the service root, fetching it on first use and caching it for the
// client's lifetime. The returned map is a copy; callers may modify it
// freely.
func (c *Client) Resources(ctx context.Context) (map[string]string, error) {
	c.resMu.Lock()
	defer c.resMu.Unlock()

	if c.resources == nil {
		resp, err := c.Request(ctx, http.MethodGet, c.basePath()+"/", nil)
		if err != nil {
			return nil, err
		}

		var resources map[string]string
		if err := DecodeJSON(resp, &resources); err != nil {
			return nil, err
		}

		c.logger.Debug().Int("resources", len(resources)).Msg("Service resources discovered")
		c.resources = resources
	}

	resources := make(map[string]string, len(c.resources))
	for name, path := range c.resources {
		resources[name] = path
	}
	return resources, nil
}

// Path resolves a logical resource name ("jobs", "sobjects", "limits")
// to its URL path. Unknown names are a not-found error.
func (c *Client) Path(ctx context.Context, resource string) (string, error) {
	resources, err := c.Resources(ctx)
	if err != nil {
		return "", err
	}
	path, ok := resources[resource]
	if !ok {
		return "", &APIError{Kind: KindNotFound, Message: "unknown resource: " + resource}
	}
	return path, nil
}

// Versions lists the API versions available on the instance.
func (c *Client) Versions(ctx context.Context) ([]APIVersion, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/services/data/", nil)
	if err != nil {
		return nil, err
	}

	var versions []APIVersion
	if err := DecodeJSON(resp, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

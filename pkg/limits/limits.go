// Package limits reads the org's API usage limits.
package limits

import (
	"context"
	"net/http"

	"github.com/forcekit/sf-bulk-client/pkg/client"
)

// Limit is one limit's capacity and remaining headroom.
type Limit struct {
	Max       int `json:"Max"`
	Remaining int `json:"Remaining"`
}

// Limits maps limit names to their current values.
type Limits map[string]Limit

// Get fetches the current limits for the org.
func Get(ctx context.Context, c *client.Client) (Limits, error) {
	path, err := c.Path(ctx, "limits")
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, http.MethodGet, path+"/", nil)
	if err != nil {
		return nil, err
	}

	var limits Limits
	if err := client.DecodeJSON(resp, &limits); err != nil {
		return nil, err
	}
	return limits, nil
}

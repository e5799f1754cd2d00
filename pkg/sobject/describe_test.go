package sobject

import (
	"context"
	"errors"
	"testing"

	"github.com/forcekit/sf-bulk-client/internal/testutil"
	"github.com/forcekit/sf-bulk-client/pkg/client"
)

// fakeCache is an in-memory MetadataCache for tests.
type fakeCache struct {
	entries map[string]*SObject
	sets    int
}

func (c *fakeCache) Get(ctx context.Context, object string) (*SObject, error) {
	if metadata, ok := c.entries[object]; ok {
		return metadata, nil
	}
	return nil, errors.New("miss")
}

func (c *fakeCache) Set(ctx context.Context, object string, metadata *SObject) error {
	if c.entries == nil {
		c.entries = make(map[string]*SObject)
	}
	c.entries[object] = metadata
	c.sets++
	return nil
}

func setupDescribeMock(t *testing.T) (*testutil.MockSalesforce, *client.Client) {
	t.Helper()

	mock := testutil.NewMockSalesforce()
	t.Cleanup(mock.Close)

	mock.SetJSONResponse(testutil.BasePath+"/sobjects/Account/describe", 200, map[string]any{
		"name":  "Account",
		"label": "Account",
		"fields": []map[string]any{
			{"name": "Id", "type": "id", "length": 18},
			{"name": "Name", "type": "string", "length": 255},
		},
	})

	c, err := mock.NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return mock, c
}

func TestDescribe(t *testing.T) {
	_, c := setupDescribeMock(t)
	describer := NewDescriber(c, nil)

	metadata, err := describer.Describe(context.Background(), "Account")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if metadata.Name != "Account" || len(metadata.Fields) != 2 {
		t.Errorf("metadata = %+v", metadata)
	}
}

func TestDescribe_NameMismatchIsNotFound(t *testing.T) {
	mock, c := setupDescribeMock(t)
	// The API matches names case-insensitively; serve the canonical
	// object for a lowercase request.
	mock.SetJSONResponse(testutil.BasePath+"/sobjects/account/describe", 200, map[string]any{
		"name":   "Account",
		"fields": []map[string]any{},
	})

	describer := NewDescriber(c, nil)
	_, err := describer.Describe(context.Background(), "account")
	if !client.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestDescribe_UnknownObject(t *testing.T) {
	_, c := setupDescribeMock(t)
	describer := NewDescriber(c, nil)

	_, err := describer.Describe(context.Background(), "Bogus")
	if !client.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestDescribe_ReadThroughCache(t *testing.T) {
	mock, c := setupDescribeMock(t)
	cache := &fakeCache{}
	describer := NewDescriber(c, cache)
	ctx := context.Background()

	if _, err := describer.Describe(ctx, "Account"); err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	before := mock.RequestCount
	if _, err := describer.Describe(ctx, "Account"); err != nil {
		t.Fatalf("Describe (cached): %v", err)
	}
	if mock.RequestCount != before {
		t.Errorf("cached describe made %d API requests, want 0", mock.RequestCount-before)
	}
}

func TestList(t *testing.T) {
	mock, c := setupDescribeMock(t)
	mock.SetJSONResponse(testutil.BasePath+"/sobjects/", 200, map[string]any{
		"encoding":     "UTF-8",
		"maxBatchSize": 200,
		"sobjects": []map[string]any{
			{"name": "Account", "queryable": true},
			{"name": "Contact", "queryable": true},
		},
	})

	describer := NewDescriber(c, nil)
	objects, err := describer.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects.SObjects) != 2 || objects.SObjects[0].Name != "Account" {
		t.Errorf("objects = %+v", objects)
	}
}

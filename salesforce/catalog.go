package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// RelationSobject is the canonical url of an object type, records live at <url>/<id>
const RelationSobject = "sobject"

// Catalog is the per type metadata fetched once after the first authentication, it is never modified afterwards
type Catalog struct {
	objects map[string]ObjectMetadata
}

func NewCatalog(objects []ObjectMetadata) Catalog {
	c := Catalog{objects: make(map[string]ObjectMetadata, len(objects))}
	for _, o := range objects {
		c.objects[o.Name] = o
	}
	return c
}

func (c Catalog) Lookup(typeName string) (ObjectMetadata, bool) {
	o, ok := c.objects[typeName]
	return o, ok
}

// Types returns the sorted object type names
func (c Catalog) Types() []string {
	names := make([]string, 0, len(c.objects))
	for n := range c.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveUrl returns the url path of the relation for typeName, e.g. /services/data/v37.0/sobjects/Account
// - UnknownTypeError if the type or relation is not in the catalog
func (c Catalog) ResolveUrl(typeName, relation string) (string, error) {
	o, ok := c.objects[typeName]
	if !ok {
		return "", UnknownTypeError{TypeName: typeName}
	}
	u, ok := o.Urls[relation]
	if !ok || u == "" {
		return "", UnknownTypeError{TypeName: typeName, Relation: relation}
	}
	return u, nil
}

func describePath(apiVersion int) string {
	return fmt.Sprintf("/services/data/v%d.0/sobjects/", apiVersion)
}

// describe fetches the sobjects list, it runs straight after authentication so a 401 is not retried
func (c *Client) describe(ctx context.Context) (Catalog, error) {
	resp, err := c.send(ctx, call{
		method:  http.MethodGet,
		path:    describePath(c.apiVersion),
		success: http.StatusOK,
		noRetry: true,
	})
	if err != nil {
		return Catalog{}, err
	}

	var parsed describeResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return Catalog{}, fmt.Errorf("unable to parse salesforce sobjects: %w", err)
	}
	return NewCatalog(parsed.Sobjects), nil
}

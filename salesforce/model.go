package salesforce

import "encoding/json"

// Record is a salesforce record whose fields are defined by the org, not by this package
type Record map[string]any

// QueryResponse is a single page of query results, NextRecordsUrl is empty on the last page
type QueryResponse[E any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsUrl string `json:"nextRecordsUrl"`
	Records        []E    `json:"records"`
}

// PostResponse is the response from Salesforce for a post/create request
type PostResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []any  `json:"errors"`
}

// Attributes to be added, optionally, to concrete types of E for QueryResponse[E]
type Attributes struct {
	Type string `json:"type"`
	Url  string `json:"url"`
}

// UpdatedResponse body of the sobject /updated resource
type UpdatedResponse struct {
	Ids               []string `json:"ids"`
	LatestDateCovered string   `json:"latestDateCovered"`
}

// DeletedResponse body of the sobject /deleted resource
type DeletedResponse struct {
	DeletedRecords        []DeletedRecord `json:"deletedRecords"`
	EarliestDateAvailable string          `json:"earliestDateAvailable"`
	LatestDateCovered     string          `json:"latestDateCovered"`
}

type DeletedRecord struct {
	Id          string `json:"id"`
	DeletedDate string `json:"deletedDate"`
}

// ObjectMetadata describes one object type as listed by the sobjects resource
type ObjectMetadata struct {
	Name  string            `json:"name"`
	Label string            `json:"label"`
	Urls  map[string]string `json:"urls"`
	Raw   map[string]any    `json:"-"`
}

type describeResponse struct {
	Sobjects []ObjectMetadata `json:"sobjects"`
}

// UnmarshalJSON keeps the full sobject description in Raw next to the typed fields
func (o *ObjectMetadata) UnmarshalJSON(b []byte) error {
	type plain ObjectMetadata
	if err := json.Unmarshal(b, (*plain)(o)); err != nil {
		return err
	}
	return json.Unmarshal(b, &o.Raw)
}

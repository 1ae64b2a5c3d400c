// Package sdk provides a Go client for the bazarsearch HTTP API.
//
// The client covers the three public operations: product search,
// listing ingestion, and health.
//
//	client := sdk.New("http://localhost:8080", sdk.WithAPIKey("secret"))
//	resp, err := client.Search(ctx, sdk.SearchRequest{
//	    Query:    "fresh hilsa fish",
//	    Latitude: ptr(23.8103), Longitude: ptr(90.4125),
//	})
package sdk

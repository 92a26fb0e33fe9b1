package view

import "encoding/json"

// Feed is a snapshot of the recent blocks window taken at a chain head.
type Feed struct {
	Head   uint64         `json:"head"`   // Head height the window was fetched from
	Blocks []BlockSummary `json:"blocks"` // Descending by height
}

// Serialize converts the feed to JSON bytes.
func (f Feed) Serialize() ([]byte, error) {
	return json.Marshal(f)
}

// DeserializeFeed parses JSON bytes into a Feed.
func DeserializeFeed(jsonData []byte) (Feed, error) {
	var feed Feed
	if err := json.Unmarshal(jsonData, &feed); err != nil {
		return feed, err
	}
	return feed, nil
}

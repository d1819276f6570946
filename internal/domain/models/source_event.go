package models

import "time"

// SourceEvent announces that an upstream series changed. Points, when
// present, are new or revised observations for Source. Symbol names a
// market ticker whose cached fetches are stale.
type SourceEvent struct {
	Source string    `json:"source,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Points []Point   `json:"points,omitempty"`
	At     time.Time `json:"at"`
}

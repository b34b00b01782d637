package common

import (
	"github.com/google/uuid"
)

// NewEntryID generates a knowledge store entry ID with the "kn_" prefix
// Format: kn_<uuid>
func NewEntryID() string {
	return "kn_" + uuid.New().String()
}

// NewClientID generates an ID for a connected event stream client
func NewClientID() string {
	return "ws_" + uuid.New().String()
}

package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// RequestsMinute returns the key counting a client's requests in the current minute
func (k *Keys) RequestsMinute(clientID string) string {
	return fmt.Sprintf("%sratelimit:%s:minute", k.prefix, clientID)
}

// RequestsHour returns the key counting a client's requests in the current hour
func (k *Keys) RequestsHour(clientID string) string {
	return fmt.Sprintf("%sratelimit:%s:hour", k.prefix, clientID)
}

// Tokens returns the key for a client's token budget in the period starting at periodStart
func (k *Keys) Tokens(clientID string, periodStart int64) string {
	return fmt.Sprintf("%stokens:%s:%d", k.prefix, clientID, periodStart)
}

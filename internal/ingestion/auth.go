package ingestion

import (
	"encoding/json"
	"fmt"
)

// Restricted events carry an authority_token that must match the configured
// value before the event reaches the core. Claims and transfers are open to
// holders; supply and revenue mutations are not.
var restrictedEventTypes = map[string]bool{
	"ShareClassCreated": true,
	"SharesMinted":      true,
	"SharesBurned":      true,
	"RevenueDeposited":  true,
}

type authorityEnvelope struct {
	AuthorityToken string `json:"authority_token"`
}

// VerifyAuthorityToken checks the authority_token of a restricted raw event
// against the configured token. Non-restricted event types pass unchecked.
// An empty expected token disables verification (dev mode). Replay does not
// call this: replayed events were verified at original ingestion.
func VerifyAuthorityToken(raw RawEvent, eventType string, expected string) error {
	if !restrictedEventTypes[eventType] {
		return nil
	}
	if expected == "" {
		return nil
	}

	var env authorityEnvelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		return fmt.Errorf("%s: parse authority_token: %w", eventType, err)
	}
	if env.AuthorityToken != expected {
		return fmt.Errorf("%s: authority token mismatch", eventType)
	}
	return nil
}

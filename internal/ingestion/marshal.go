package ingestion

import (
	"encoding/json"
	"fmt"

	"RevLedger/internal/event"
)

// replayAuthorityToken stands in for the original authority token in stored
// payloads. The real token is verified once at ingestion and never persisted;
// the parser only requires the field to be present on restricted events.
const replayAuthorityToken = "replay"

// MarshalEventJSON renders a typed event back into its wire JSON form.
// The event log stores this so replay can feed rows straight back through
// ParseRawEvent.
func MarshalEventJSON(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case *event.ShareClassCreated:
		return json.Marshal(shareClassCreatedJSON{
			EventID:        e.EventID.String(),
			Kind:           e.Kind,
			TotalSupplyCap: e.TotalSupplyCap,
			Burnable:       e.Burnable,
			AuthorityToken: replayAuthorityToken,
			Sequence:       e.Sequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})

	case *event.SharesMinted:
		return json.Marshal(sharesMintedJSON{
			EventID:        e.EventID.String(),
			ShareID:        e.ShareID.String(),
			Kind:           e.Kind,
			Amount:         e.Amount,
			AuthorityToken: replayAuthorityToken,
			Sequence:       e.Sequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})

	case *event.SharesSplit:
		return json.Marshal(sharesSplitJSON{
			EventID:       e.EventID.String(),
			SourceShareID: e.SourceShareID.String(),
			NewShareID:    e.NewShareID.String(),
			Kind:          e.Kind,
			Amount:        e.Amount,
			Sequence:      e.Sequence,
			TimestampUs:   e.Timestamp.UnixMicro(),
		})

	case *event.SharesJoined:
		return json.Marshal(sharesJoinedJSON{
			EventID:       e.EventID.String(),
			SourceShareID: e.SourceShareID.String(),
			TargetShareID: e.TargetShareID.String(),
			Kind:          e.Kind,
			Sequence:      e.Sequence,
			TimestampUs:   e.Timestamp.UnixMicro(),
		})

	case *event.SharesBurned:
		return json.Marshal(sharesBurnedJSON{
			EventID:        e.EventID.String(),
			ShareID:        e.ShareID.String(),
			Kind:           e.Kind,
			AuthorityToken: replayAuthorityToken,
			Sequence:       e.Sequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})

	case *event.RevenueDeposited:
		return json.Marshal(revenueDepositedJSON{
			EventID:        e.EventID.String(),
			Kind:           e.Kind,
			RewardKind:     e.RewardKind,
			Amount:         e.Amount,
			AuthorityToken: replayAuthorityToken,
			Sequence:       e.Sequence,
			TimestampUs:    e.Timestamp.UnixMicro(),
		})

	case *event.RevenueClaimed:
		return json.Marshal(revenueClaimedJSON{
			EventID:     e.EventID.String(),
			ShareID:     e.ShareID.String(),
			Kind:        e.Kind,
			RewardKind:  e.RewardKind,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})

	case *event.RevenueBatchClaimed:
		ids := make([]string, len(e.ShareIDs))
		for i, id := range e.ShareIDs {
			ids[i] = id.String()
		}
		return json.Marshal(revenueBatchClaimedJSON{
			EventID:     e.EventID.String(),
			Kind:        e.Kind,
			RewardKind:  e.RewardKind,
			ShareIDs:    ids,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp.UnixMicro(),
		})

	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

package ledger

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeShare AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Share sub-types
	SubTypeUnits AccountSubType = iota

	// System sub-types
	SubTypeShareSupply
	SubTypeVault

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalPayouts
)

// AssetID maps asset strings to numeric IDs for compact keys. Both share
// asset kinds and reward kinds are open-ended, so the mapping is assigned
// lazily in first-use order rather than from a fixed table.
type AssetID uint16

// AssetRegistry owns the asset-name/ID mapping for one ledger instance.
// Mutation happens on the core's processing goroutine; the mutex covers
// name lookups from the output bridge and snapshot persisters.
type AssetRegistry struct {
	mu    sync.RWMutex
	ids   map[string]AssetID
	names map[AssetID]string
	order []string
	next  AssetID
}

// ID 0 is reserved as "unknown".
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{
		ids:   make(map[string]AssetID),
		names: make(map[AssetID]string),
		next:  1,
	}
}

// Register returns the ID for an asset name, assigning the next free ID on
// first use. Assignment order follows event-apply order, which makes it
// reproducible across replays of the same log.
func (r *AssetRegistry) Register(asset string) AssetID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[asset]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[asset] = id
	r.names[id] = asset
	r.order = append(r.order, asset)
	return id
}

func (r *AssetRegistry) Lookup(asset string) (AssetID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[asset]
	return id, ok
}

func (r *AssetRegistry) Name(id AssetID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// Registered returns all asset names in registration order.
func (r *AssetRegistry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // share UUID, or owning asset kind ID for system accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewShareAccountKey creates a key for a share's unit account
func NewShareAccountKey(shareID uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeShare,
		EntityID: shareID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts. The owning asset
// kind's ID is part of the key so that vaults and supply accounts of
// different kinds never collide.
func NewSystemAccountKey(ownerID AssetID, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.BigEndian.PutUint16(entityID[:2], uint16(ownerID))
	return AccountKey{
		Scope:    AccountScopeSystem,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

func (k AccountKey) ownerAssetID() AssetID {
	return AssetID(binary.BigEndian.Uint16(k.EntityID[:2]))
}

// PathFor returns the string representation of a key for storage/logging.
// Rendering needs the registry because keys carry only numeric asset IDs.
func (r *AssetRegistry) PathFor(k AccountKey) string {
	assetName, _ := r.Name(k.AssetID)

	switch k.Scope {
	case AccountScopeShare:
		sid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("share:%s:%s:%s", sid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		owner, _ := r.Name(k.ownerAssetID())
		return fmt.Sprintf("system:%s:%s:%s", owner, k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeUnits:
		return "units"
	case SubTypeShareSupply:
		return "share_supply"
	case SubTypeVault:
		return "vault"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}

func subTypeFromName(name string) (AccountSubType, bool) {
	switch name {
	case "units":
		return SubTypeUnits, true
	case "share_supply":
		return SubTypeShareSupply, true
	case "vault":
		return SubTypeVault, true
	case "deposits":
		return SubTypeExternalDeposits, true
	case "payouts":
		return SubTypeExternalPayouts, true
	}
	return 0, false
}

// ParsePath reconstructs a key from its path form. Asset names found in the
// path are registered on the fly, so snapshot balances restore even in a
// process that has not replayed the originating events.
func (r *AssetRegistry) ParsePath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	if len(parts) < 3 {
		return AccountKey{}, fmt.Errorf("malformed account path %q", path)
	}

	switch parts[0] {
	case "share":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed share account path %q", path)
		}
		sid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("bad share id in path %q: %w", path, err)
		}
		subType, ok := subTypeFromName(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown sub-type in path %q", path)
		}
		return NewShareAccountKey(sid, subType, r.Register(parts[3])), nil

	case "system":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed system account path %q", path)
		}
		subType, ok := subTypeFromName(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown sub-type in path %q", path)
		}
		return NewSystemAccountKey(r.Register(parts[1]), subType, r.Register(parts[3])), nil

	case "external":
		if len(parts) != 3 {
			return AccountKey{}, fmt.Errorf("malformed external account path %q", path)
		}
		subType, ok := subTypeFromName(parts[1])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown sub-type in path %q", path)
		}
		return NewExternalAccountKey(subType, r.Register(parts[2])), nil
	}

	return AccountKey{}, fmt.Errorf("unknown account scope in path %q", path)
}

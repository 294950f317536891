package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Profile represents a user identity owning a session wallet and linked accounts.
// ClusterID is set after the first successful provider cluster creation and is
// cleared on rebuild.
type Profile struct {
	ID                   uuid.UUID       `json:"id"`
	SessionWalletAddress string          `json:"sessionWalletAddress"`
	ClusterID            null.String     `json:"clusterId,omitempty"`
	LinkedAccounts       []LinkedAccount `json:"linkedAccounts,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// ActiveAccounts returns the active subset of the profile's linked accounts.
func (p *Profile) ActiveAccounts() []LinkedAccount {
	var active []LinkedAccount
	for _, a := range p.LinkedAccounts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active
}

// LinkedAccount is an externally-owned chain account tied to one profile.
type LinkedAccount struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profileId"`
	Address   string    `json:"address"`
	ChainID   uint64    `json:"chainId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// VirtualSession is a per-(profile, chain) RPC handle obtained from the
// provider. The in-process pool owns reachability; the durable record exists
// for observability only.
type VirtualSession struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profileId"`
	ChainID   uint64    `json:"chainId"`
	Address   string    `json:"address"`
	RPCURL    string    `json:"rpcUrl"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

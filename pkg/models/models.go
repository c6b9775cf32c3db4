package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// FetchStatus is the lifecycle of an account fetch.
type FetchStatus int

const (
	FetchNotRequested FetchStatus = iota
	Fetching
	FetchFailed
	Fetched
)

func (s FetchStatus) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case FetchFailed:
		return "failed"
	case Fetched:
		return "fetched"
	default:
		return "not_requested"
	}
}

// FetchState is the cached result of fetching one account.
type FetchState struct {
	Status    FetchStatus
	Account   *Account
	Err       error
	UpdatedAt time.Time
}

// Account holds the data for a single on-chain address.
type Account struct {
	Pubkey   solana.PublicKey `json:"pubkey"`
	Lamports *uint64          `json:"lamports,omitempty"`
	Details  *AccountDetails  `json:"details,omitempty"`
}

// AccountDetails is the optional part of an account returned by getAccountInfo.
type AccountDetails struct {
	Executable bool             `json:"executable"`
	Owner      solana.PublicKey `json:"owner"`
	Space      uint64           `json:"space"`
	RentEpoch  uint64           `json:"rent_epoch"`
	Data       *ProgramData     `json:"data,omitempty"`
}

// ProgramData is the jsonParsed payload of an account, tagged by Program.
type ProgramData struct {
	Program    string           `json:"program"`
	Parsed     map[string]any   `json:"parsed"`
	Space      uint64           `json:"space"`
	Activation *StakeActivation `json:"activation,omitempty"`
	Stake      *StakeAccount    `json:"stake,omitempty"` // Only set for the stake program
}

// ParsedType returns parsed.type, or "" when absent.
func (d *ProgramData) ParsedType() string {
	if d == nil || d.Parsed == nil {
		return ""
	}
	t, _ := d.Parsed["type"].(string)
	return t
}

// Info returns parsed.info as an object, or nil.
func (d *ProgramData) Info() map[string]any {
	if d == nil || d.Parsed == nil {
		return nil
	}
	info, _ := d.Parsed["info"].(map[string]any)
	return info
}

// InfoList returns parsed.info as a list, used by the sysvar list accounts.
func (d *ProgramData) InfoList() []any {
	if d == nil || d.Parsed == nil {
		return nil
	}
	list, _ := d.Parsed["info"].([]any)
	return list
}

// StakeAccount is the canonical stake payload: Kind is the stake account type
// (initialized, delegated, ...) and Body holds the account fields.
type StakeAccount struct {
	Kind string         `json:"kind"`
	Body map[string]any `json:"body"`
}

// StakeActivation is the result of getStakeActivation.
type StakeActivation struct {
	State    string `json:"state"`
	Active   uint64 `json:"active"`
	Inactive uint64 `json:"inactive"`
}

// Signature is one entry of an address's transaction history.
type Signature struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Failed    bool       `json:"failed"`
	Memo      string     `json:"memo,omitempty"`
}

// TokenHolding is a token account owned by an address.
type TokenHolding struct {
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Amount  string `json:"amount"`
}

// LargestAccount is one of the largest holders of a mint.
type LargestAccount struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// ClusterHealth is the result of a health probe.
type ClusterHealth struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// ClusterResult holds test results for a specific cluster.
type ClusterResult struct {
	Name                string      `json:"name"`
	ConfigGenesisHash   string      `json:"config_genesis_hash"`
	RPCs                []RPCResult `json:"rpcs"`
	Inconsistent        bool        `json:"inconsistent"`
	GenesisHashUpdated  bool        `json:"genesis_hash_updated"`
	ObservedGenesisHash string      `json:"observed_genesis_hash,omitempty"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL         string `json:"url"`
	Status      string `json:"status"` // "ok" or "error"
	Version     string `json:"version,omitempty"`
	GenesisHash string `json:"genesis_hash,omitempty"`
	Slot        uint64 `json:"slot,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath           string          `json:"config_path"`
	ValidStructure       bool            `json:"valid_structure"`
	StructureErrors      []string        `json:"structure_errors,omitempty"`
	AddressCount         int             `json:"address_count"`
	ClusterCount         int             `json:"cluster_count"`
	Clusters             []ClusterResult `json:"clusters,omitempty"`
	InconsistentClusters []string        `json:"inconsistent_clusters,omitempty"`
	ConfigUpdated        bool            `json:"config_updated"`
	SaveError            string          `json:"save_error,omitempty"`
	DryRun               bool            `json:"dry_run"`
}

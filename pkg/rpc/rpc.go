package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"

	"solexplorer/pkg/models"
)

var ErrNoRPC = errors.New("no RPC URLs configured")

const commitment = "confirmed"

// call tries each RPC URL in order until one answers.
func call(ctx context.Context, rpcURLs []string, result any, method string, args ...any) error {
	if len(rpcURLs) == 0 {
		return ErrNoRPC
	}
	var lastErr error
	for _, rpcURL := range rpcURLs {
		client, err := gethrpc.DialContext(ctx, rpcURL)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", rpcURL, err)
			continue
		}
		err = client.CallContext(ctx, result, method, args...)
		client.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: %s: %w", rpcURL, method, err)
			continue
		}
		return nil
	}
	return lastErr
}

type accountInfoValue struct {
	Data       json.RawMessage `json:"data"`
	Executable bool            `json:"executable"`
	Lamports   *uint64         `json:"lamports"`
	Owner      string          `json:"owner"`
	RentEpoch  uint64          `json:"rentEpoch"`
	Space      uint64          `json:"space"`
}

// FetchAccountInfo fetches and parses one account. A missing account is
// returned as an empty account with zero lamports and no details.
func FetchAccountInfo(ctx context.Context, rpcURLs []string, key solana.PublicKey) (*models.Account, error) {
	var res struct {
		Value *accountInfoValue `json:"value"`
	}
	opts := map[string]any{"encoding": "jsonParsed", "commitment": commitment}
	if err := call(ctx, rpcURLs, &res, "getAccountInfo", key.String(), opts); err != nil {
		return nil, err
	}

	if res.Value == nil {
		var zero uint64
		return &models.Account{Pubkey: key, Lamports: &zero}, nil
	}

	account := toAccount(key, res.Value)
	if data := account.Details.Data; data != nil && data.Program == "stake" {
		if activation, err := FetchStakeActivation(ctx, rpcURLs, key); err == nil {
			data.Activation = activation
		}
	}
	return account, nil
}

func toAccount(key solana.PublicKey, v *accountInfoValue) *models.Account {
	details := &models.AccountDetails{
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
		Space:      v.Space,
		Data:       ParseProgramData(v.Data),
	}
	if owner, err := solana.PublicKeyFromBase58(v.Owner); err == nil {
		details.Owner = owner
	}
	return &models.Account{Pubkey: key, Lamports: v.Lamports, Details: details}
}

// ParseProgramData decodes a jsonParsed data field. Raw (base64) data and
// anything that is not an object yield nil.
func ParseProgramData(raw json.RawMessage) *models.ProgramData {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var envelope struct {
		Program string          `json:"program"`
		Parsed  json.RawMessage `json:"parsed"`
		Space   uint64          `json:"space"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Program == "" {
		return nil
	}

	data := &models.ProgramData{Program: envelope.Program, Space: envelope.Space}
	if len(envelope.Parsed) > 0 {
		dec := json.NewDecoder(bytes.NewReader(envelope.Parsed))
		dec.UseNumber()
		var parsed map[string]any
		if err := dec.Decode(&parsed); err == nil {
			data.Parsed = parsed
		}
	}
	if data.Program == "stake" {
		data.Stake = models.ClassifyStake(data.Parsed)
	}
	return data
}

// FetchStakeActivation returns the activation state of a stake account.
func FetchStakeActivation(ctx context.Context, rpcURLs []string, key solana.PublicKey) (*models.StakeActivation, error) {
	var res models.StakeActivation
	opts := map[string]any{"commitment": commitment}
	if err := call(ctx, rpcURLs, &res, "getStakeActivation", key.String(), opts); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchSignatures returns the most recent transaction signatures of an address.
func FetchSignatures(ctx context.Context, rpcURLs []string, key solana.PublicKey, limit int) ([]models.Signature, error) {
	if limit <= 0 {
		limit = 10
	}
	var res []struct {
		Signature string  `json:"signature"`
		Slot      uint64  `json:"slot"`
		Err       any     `json:"err"`
		Memo      *string `json:"memo"`
		BlockTime *int64  `json:"blockTime"`
	}
	opts := map[string]any{"limit": limit, "commitment": commitment}
	if err := call(ctx, rpcURLs, &res, "getSignaturesForAddress", key.String(), opts); err != nil {
		return nil, err
	}

	sigs := make([]models.Signature, 0, len(res))
	for _, r := range res {
		sig := models.Signature{Signature: r.Signature, Slot: r.Slot, Failed: r.Err != nil}
		if r.Memo != nil {
			sig.Memo = *r.Memo
		}
		if r.BlockTime != nil {
			bt := time.Unix(*r.BlockTime, 0).UTC()
			sig.BlockTime = &bt
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// FetchTokenAccounts returns the SPL token accounts owned by an address.
func FetchTokenAccounts(ctx context.Context, rpcURLs []string, owner solana.PublicKey) ([]models.TokenHolding, error) {
	var res struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data json.RawMessage `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	filter := map[string]any{"programId": solana.TokenProgramID.String()}
	opts := map[string]any{"encoding": "jsonParsed", "commitment": commitment}
	if err := call(ctx, rpcURLs, &res, "getTokenAccountsByOwner", owner.String(), filter, opts); err != nil {
		return nil, err
	}

	holdings := make([]models.TokenHolding, 0, len(res.Value))
	for _, v := range res.Value {
		h := models.TokenHolding{Account: v.Pubkey}
		if data := ParseProgramData(v.Account.Data); data != nil {
			info := data.Info()
			h.Mint, _ = info["mint"].(string)
			if amount, ok := info["tokenAmount"].(map[string]any); ok {
				h.Amount, _ = amount["uiAmountString"].(string)
			}
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// FetchLargestAccounts returns the largest holders of a mint.
func FetchLargestAccounts(ctx context.Context, rpcURLs []string, mint solana.PublicKey) ([]models.LargestAccount, error) {
	var res struct {
		Value []struct {
			Address        string `json:"address"`
			UIAmountString string `json:"uiAmountString"`
		} `json:"value"`
	}
	opts := map[string]any{"commitment": commitment}
	if err := call(ctx, rpcURLs, &res, "getTokenLargestAccounts", mint.String(), opts); err != nil {
		return nil, err
	}

	out := make([]models.LargestAccount, 0, len(res.Value))
	for _, v := range res.Value {
		out = append(out, models.LargestAccount{Address: v.Address, Amount: v.UIAmountString})
	}
	return out, nil
}

// FetchHealth probes the cluster and measures the round trip of the first
// RPC URL that answers.
func FetchHealth(ctx context.Context, rpcURLs []string) (models.ClusterHealth, error) {
	var lastErr error = ErrNoRPC
	for _, rpcURL := range rpcURLs {
		start := time.Now()
		var status string
		if err := call(ctx, []string{rpcURL}, &status, "getHealth"); err != nil {
			// Some providers do not expose getHealth
			if _, verr := FetchVersion(ctx, rpcURL); verr != nil {
				lastErr = err
				continue
			}
			status = "ok"
		}
		if status != "ok" {
			lastErr = fmt.Errorf("%s: unhealthy: %s", rpcURL, status)
			continue
		}
		return models.ClusterHealth{RPCURL: rpcURL, Latency: time.Since(start)}, nil
	}
	return models.ClusterHealth{Err: lastErr}, lastErr
}

// FetchVersion returns the solana-core version reported by one RPC URL.
func FetchVersion(ctx context.Context, rpcURL string) (string, error) {
	var res map[string]any
	if err := call(ctx, []string{rpcURL}, &res, "getVersion"); err != nil {
		return "", err
	}
	v, _ := res["solana-core"].(string)
	return v, nil
}

// FetchGenesisHash returns the genesis hash reported by one RPC URL.
func FetchGenesisHash(ctx context.Context, rpcURL string) (string, error) {
	var hash string
	if err := call(ctx, []string{rpcURL}, &hash, "getGenesisHash"); err != nil {
		return "", err
	}
	return hash, nil
}

// FetchSlot returns the current slot of the cluster.
func FetchSlot(ctx context.Context, rpcURLs []string) (uint64, error) {
	var slot uint64
	if err := call(ctx, rpcURLs, &slot, "getSlot"); err != nil {
		return 0, err
	}
	return slot, nil
}

package account

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solexplorer/pkg/models"
)

const voteAddress = "Vote111111111111111111111111111111111111111"

func lamports(v uint64) *uint64 { return &v }

func programData(program, typ string) *models.ProgramData {
	parsed := map[string]any{}
	if typ != "" {
		parsed["type"] = typ
		parsed["info"] = map[string]any{}
	}
	return &models.ProgramData{Program: program, Parsed: parsed}
}

func slugs(tabs []Tab) []TabSlug {
	out := make([]TabSlug, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, t.Slug)
	}
	return out
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{voteAddress, true},
		{"So11111111111111111111111111111111111111112", true},
		{"SysvarS1otHashes111111111111111111111111111", true},
		{"not-a-valid-key", false},
		{"", false},
		{"111", false},
		{"0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OI", false},
		{" " + voteAddress, false},
		{"0x71C7656EC7ab88b098defB751B7401B5f6d8976F", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := ValidateAddress(tt.raw)
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.raw, key.String())
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.True(t, key.IsZero())

			// Repeated calls agree.
			_, again := ValidateAddress(tt.raw)
			assert.Equal(t, err.Error(), again.Error())
		})
	}
}

func TestInvalidAddressText(t *testing.T) {
	assert.Equal(t, `Address "not-a-valid-key" is not valid`, InvalidAddressText("not-a-valid-key"))
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		details *models.AccountDetails
		want    Variant
	}{
		{"nil details", nil, VariantUnknown},
		{"no data", &models.AccountDetails{}, VariantUnknown},
		{"stake", &models.AccountDetails{Data: programData("stake", "delegated")}, VariantStake},
		{"token", &models.AccountDetails{Data: programData("spl-token", "account")}, VariantToken},
		{"mint", &models.AccountDetails{Data: programData("spl-token", "mint")}, VariantToken},
		{"nonce", &models.AccountDetails{Data: programData("nonce", "initialized")}, VariantNonce},
		{"vote", &models.AccountDetails{Data: programData("vote", "vote")}, VariantVote},
		{"sysvar", &models.AccountDetails{Data: programData("sysvar", "clock")}, VariantSysvar},
		{"config", &models.AccountDetails{Data: programData("config", "validatorInfo")}, VariantConfig},
		{"unrecognised", &models.AccountDetails{Data: programData("bpf-upgradeable-loader", "program")}, VariantUnknown},
		{"empty program", &models.AccountDetails{Data: programData("", "")}, VariantUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Dispatch(tt.details)
			assert.Equal(t, tt.want, view.Variant)
			if tt.want == VariantStake {
				assert.NotNil(t, view.Stake)
			} else {
				assert.Nil(t, view.Stake)
			}
		})
	}
}

func TestDispatch_StakeShapes(t *testing.T) {
	activation := &models.StakeActivation{State: "active", Active: 10}

	flat := &models.ProgramData{
		Program:    "stake",
		Parsed:     map[string]any{"accountType": "delegated", "meta": map[string]any{}},
		Activation: activation,
	}
	view := Dispatch(&models.AccountDetails{Data: flat})
	require.NotNil(t, view.Stake)
	assert.Equal(t, "delegated", view.Stake.Kind)
	assert.Contains(t, view.Stake.Body, "meta")
	assert.Same(t, activation, view.Stake.Activation)

	nested := &models.ProgramData{
		Program: "stake",
		Parsed:  map[string]any{"type": "initialized", "info": map[string]any{"meta": 1}},
	}
	view = Dispatch(&models.AccountDetails{Data: nested})
	assert.Equal(t, "initialized", view.Stake.Kind)
	assert.Equal(t, map[string]any{"meta": 1}, view.Stake.Body)
	assert.Nil(t, view.Stake.Activation)

	// Already classified at the parse boundary.
	classified := &models.ProgramData{
		Program: "stake",
		Stake:   &models.StakeAccount{Kind: "rewardsPool"},
	}
	assert.Equal(t, "rewardsPool", Dispatch(&models.AccountDetails{Data: classified}).Stake.Kind)

	// Nothing to probe degrades to unknown.
	bare := &models.ProgramData{Program: "stake"}
	assert.Equal(t, models.StakeKindUnknown, Dispatch(&models.AccountDetails{Data: bare}).Stake.Kind)
}

func TestTabKey(t *testing.T) {
	assert.Equal(t, ":", TabKey(nil))
	assert.Equal(t, "vote:", TabKey(&models.ProgramData{Program: "vote"}))
	assert.Equal(t, "sysvar:slotHashes", TabKey(programData("sysvar", "slotHashes")))
}

func TestResolveTabs(t *testing.T) {
	tests := []struct {
		name string
		data *models.ProgramData
		want []TabSlug
	}{
		{"no data", nil, []TabSlug{TabHistory, TabTokens}},
		{"system account", programData("system", ""), []TabSlug{TabHistory, TabTokens}},
		{"mint", programData("spl-token", "mint"), []TabSlug{TabHistory, TabLargest}},
		{"token account", programData("spl-token", "account"), []TabSlug{TabHistory, TabTokens}},
		{"vote", programData("vote", "vote"), []TabSlug{TabHistory, TabVotes}},
		{"vote without type", &models.ProgramData{Program: "vote"}, []TabSlug{TabHistory, TabVotes}},
		{"recent blockhashes", programData("sysvar", "recentBlockhashes"), []TabSlug{TabHistory, TabBlockhashes}},
		{"slot hashes", programData("sysvar", "slotHashes"), []TabSlug{TabHistory, TabHashes}},
		{"stake history", programData("sysvar", "stakeHistory"), []TabSlug{TabHistory, TabStakeHistory}},
		{"clock", programData("sysvar", "clock"), []TabSlug{TabHistory}},
		{"validator info", programData("config", "validatorInfo"), []TabSlug{TabHistory, TabPublicKeys}},
		{"stake config", programData("config", "stakeConfig"), []TabSlug{TabHistory}},
		{"stake", programData("stake", "delegated"), []TabSlug{TabHistory, TabTokens}},
		{"nonce", programData("nonce", "initialized"), []TabSlug{TabHistory, TabTokens}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tabs := ResolveTabs(tt.data)
			assert.Equal(t, tt.want, slugs(tabs))
			assert.Equal(t, TabHistory, tabs[0].Slug)
			assert.Equal(t, "", tabs[0].Path)
		})
	}
}

func TestResolveTabs_TokensInvariant(t *testing.T) {
	hidden := map[string]bool{"spl-token:mint": true, "config": true, "vote": true, "sysvar": true}
	programs := []string{"", "stake", "spl-token", "nonce", "vote", "sysvar", "config", "system", "unknown"}
	types := []string{"", "mint", "account", "vote", "slotHashes", "stakeHistory", "recentBlockhashes", "validatorInfo", "delegated"}

	for _, p := range programs {
		for _, typ := range types {
			data := programData(p, typ)
			tabs := ResolveTabs(data)
			wantTokens := !hidden[p] && !hidden[TabKey(data)]
			assert.Equal(t, wantTokens, HasTab(tabs, TabTokens), "program=%q type=%q", p, typ)
			assert.Equal(t, TabHistory, tabs[0].Slug)
			if wantTokens {
				assert.Equal(t, TabTokens, tabs[len(tabs)-1].Slug)
			}
		}
	}
}

func TestResolveTabs_Paths(t *testing.T) {
	tabs := ResolveTabs(programData("spl-token", "mint"))
	require.Len(t, tabs, 2)
	assert.Equal(t, Tab{Slug: TabLargest, Title: "Distribution", Path: "/largest"}, tabs[1])
	assert.Equal(t, "/address/"+voteAddress+"/largest", TabPath(voteAddress, tabs[1]))
	assert.Equal(t, "/address/"+voteAddress, TabPath(voteAddress, tabs[0]))
}

func TestTabRenders(t *testing.T) {
	tests := []struct {
		tab  TabSlug
		data *models.ProgramData
		want bool
	}{
		{TabHistory, nil, true},
		{TabTokens, programData("spl-token", "account"), true},
		{TabLargest, programData("spl-token", "mint"), true},
		{TabVotes, programData("vote", "vote"), true},
		{TabVotes, programData("stake", "delegated"), false},
		{TabHashes, programData("sysvar", "slotHashes"), true},
		{TabHashes, programData("sysvar", "stakeHistory"), false},
		{TabStakeHistory, programData("sysvar", "stakeHistory"), true},
		{TabBlockhashes, programData("sysvar", "recentBlockhashes"), true},
		{TabBlockhashes, nil, false},
		{TabPublicKeys, programData("config", "validatorInfo"), true},
		{TabPublicKeys, programData("config", "stakeConfig"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TabRenders(tt.tab, tt.data), "%s %s", tt.tab, TabKey(tt.data))
	}
}

func TestGuard(t *testing.T) {
	base := AddressPath(voteAddress)
	voteTabs := ResolveTabs(programData("vote", "vote"))

	assert.Equal(t, GuardResult{Tab: TabHistory}, Guard("", voteTabs, base))
	assert.Equal(t, GuardResult{Tab: TabVotes}, Guard("votes", voteTabs, base))
	assert.Equal(t, GuardResult{Redirect: true, RedirectTo: base}, Guard("public-keys", voteTabs, base))
	assert.Equal(t, GuardResult{Redirect: true, RedirectTo: base}, Guard("bogus", voteTabs, base))
}

func TestGuard_NeverLoops(t *testing.T) {
	datas := []*models.ProgramData{
		nil,
		programData("vote", "vote"),
		programData("sysvar", "clock"),
		programData("spl-token", "mint"),
		programData("config", "validatorInfo"),
	}
	base := AddressPath(voteAddress)
	for _, data := range datas {
		tabs := ResolveTabs(data)
		for _, slug := range AllTabSlugs {
			res := Guard(string(slug), tabs, base)
			if HasTab(tabs, slug) {
				assert.Equal(t, slug, res.Tab)
				continue
			}
			require.True(t, res.Redirect)
			// Following the redirect means no tab is requested.
			again := Guard("", tabs, res.RedirectTo)
			assert.False(t, again.Redirect)
			assert.Equal(t, TabHistory, again.Tab)
		}
	}
}

func TestClusterPath(t *testing.T) {
	assert.Equal(t, "/address/x", ClusterPath("/address/x", ""))
	assert.Equal(t, "/address/x", ClusterPath("/address/x", "mainnet-beta"))
	assert.Equal(t, "/address/x?cluster=devnet", ClusterPath("/address/x", "devnet"))
}

func loaded(account *models.Account) StatusFunc {
	return func(solana.PublicKey) models.FetchState {
		return models.FetchState{Status: models.Fetched, Account: account}
	}
}

func voteAccount() *models.Account {
	return &models.Account{
		Pubkey:   solana.VoteProgramID,
		Lamports: lamports(100),
		Details:  &models.AccountDetails{Data: programData("vote", "vote")},
	}
}

func TestBuildPage_InvalidAddress(t *testing.T) {
	called := false
	page := BuildPage("not-a-valid-key", "", func(solana.PublicKey) models.FetchState {
		called = true
		return models.FetchState{}
	})
	assert.Equal(t, PageInvalid, page.State)
	assert.ErrorIs(t, page.Err, ErrInvalidAddress)
	assert.Equal(t, `Address "not-a-valid-key" is not valid`, page.Message)
	assert.False(t, called, "invalid addresses never reach the fetch stage")
}

func TestBuildPage_FetchStates(t *testing.T) {
	tests := []struct {
		name  string
		state models.FetchState
		want  PageState
	}{
		{"not requested", models.FetchState{}, PageLoading},
		{"fetching", models.FetchState{Status: models.Fetching}, PageLoading},
		{"failed", models.FetchState{Status: models.FetchFailed, Err: errors.New("boom")}, PageFailed},
		{"fetched without account", models.FetchState{Status: models.Fetched}, PageFailed},
		{"fetched without lamports", models.FetchState{Status: models.Fetched, Account: &models.Account{}}, PageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := BuildPage(voteAddress, "votes", func(solana.PublicKey) models.FetchState { return tt.state })
			assert.Equal(t, tt.want, page.State)
			if tt.want == PageFailed {
				assert.ErrorIs(t, page.Err, ErrFetchFailed)
				assert.Equal(t, "Fetch Failed", page.Message)
			}
			assert.Empty(t, page.Tabs)
		})
	}
}

func TestBuildPage_VoteRedirect(t *testing.T) {
	page := BuildPage(voteAddress, "public-keys", loaded(voteAccount()))
	assert.Equal(t, PageRedirect, page.State)
	assert.Equal(t, []TabSlug{TabHistory, TabVotes}, slugs(page.Tabs))
	assert.Equal(t, "/address/"+voteAddress, page.RedirectTo)

	// After the redirect, no tab is requested and the page displays.
	page = BuildPage(voteAddress, "", loaded(voteAccount()))
	assert.Equal(t, PageDisplay, page.State)
	assert.Equal(t, TabHistory, page.Tab)
}

func TestBuildPage_VoteTab(t *testing.T) {
	page := BuildPage(voteAddress, "votes", loaded(voteAccount()))
	assert.Equal(t, PageDisplay, page.State)
	assert.Equal(t, TabVotes, page.Tab)
	assert.Equal(t, VariantVote, page.View.Variant)
}

func TestBuildPage_StakeHistorySysvar(t *testing.T) {
	acc := &models.Account{
		Pubkey:   solana.SysVarStakeHistoryPubkey,
		Lamports: lamports(1),
		Details:  &models.AccountDetails{Data: programData("sysvar", "stakeHistory")},
	}
	page := BuildPage(solana.SysVarStakeHistoryPubkey.String(), "", loaded(acc))
	assert.Equal(t, PageDisplay, page.State)
	assert.Equal(t, []TabSlug{TabHistory, TabStakeHistory}, slugs(page.Tabs))
	assert.Equal(t, TabHistory, page.Tab)
	assert.Equal(t, VariantSysvar, page.View.Variant)
}

func TestBuildPage_NoProgramData(t *testing.T) {
	acc := &models.Account{Pubkey: solana.SystemProgramID, Lamports: lamports(0)}
	page := BuildPage(voteAddress, "", loaded(acc))
	assert.Equal(t, PageDisplay, page.State)
	assert.Equal(t, []TabSlug{TabHistory, TabTokens}, slugs(page.Tabs))
	assert.Equal(t, VariantUnknown, page.View.Variant)
}

func TestBuildPage_Deterministic(t *testing.T) {
	first := BuildPage(voteAddress, "votes", loaded(voteAccount()))
	second := BuildPage(voteAddress, "votes", loaded(voteAccount()))
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.Tabs, second.Tabs)
	assert.Equal(t, first.Tab, second.Tab)
	assert.Equal(t, first.View.Variant, second.View.Variant)
}

type fakeBridge struct {
	state     models.FetchState
	observed  []solana.PublicKey
	refetched []solana.PublicKey
}

func (f *fakeBridge) Status(solana.PublicKey) models.FetchState { return f.state }
func (f *fakeBridge) Observe(key solana.PublicKey)              { f.observed = append(f.observed, key) }
func (f *fakeBridge) Refetch(key solana.PublicKey)              { f.refetched = append(f.refetched, key) }

func TestController(t *testing.T) {
	bridge := &fakeBridge{}
	c := NewController(bridge)

	page := c.Load("not-a-valid-key", "")
	assert.Equal(t, PageInvalid, page.State)
	assert.Empty(t, bridge.observed)

	page = c.Load(voteAddress, "")
	assert.Equal(t, PageLoading, page.State)
	require.Len(t, bridge.observed, 1)
	assert.Equal(t, solana.VoteProgramID, bridge.observed[0])

	bridge.state = models.FetchState{Status: models.Fetched, Account: voteAccount()}
	page = c.Retry(voteAddress, "votes")
	assert.Equal(t, PageDisplay, page.State)
	assert.Len(t, bridge.refetched, 1)
}

package account

import (
	"slices"

	"solexplorer/pkg/models"
)

// TabSlug identifies a secondary view of an account.
type TabSlug string

const (
	TabHistory      TabSlug = "history"
	TabTokens       TabSlug = "tokens"
	TabLargest      TabSlug = "largest"
	TabVotes        TabSlug = "votes"
	TabHashes       TabSlug = "hashes"
	TabStakeHistory TabSlug = "stake-history"
	TabBlockhashes  TabSlug = "blockhashes"
	TabPublicKeys   TabSlug = "public-keys"
)

// AllTabSlugs lists every slug in tab bar order.
var AllTabSlugs = []TabSlug{
	TabHistory, TabTokens, TabLargest, TabVotes,
	TabHashes, TabStakeHistory, TabBlockhashes, TabPublicKeys,
}

// Tab is one entry of an account's tab bar. Path is appended to the
// account's base path ("" for history).
type Tab struct {
	Slug  TabSlug `json:"slug"`
	Title string  `json:"title"`
	Path  string  `json:"path"`
}

var historyTab = Tab{Slug: TabHistory, Title: "History", Path: ""}

var tokensTab = Tab{Slug: TabTokens, Title: "Tokens", Path: "/tokens"}

// tabsLookup maps a bare program name or a "program:type" key to the extra
// tab that classification gets.
var tabsLookup = map[string]Tab{
	"spl-token:mint":           {Slug: TabLargest, Title: "Distribution", Path: "/largest"},
	"vote":                     {Slug: TabVotes, Title: "Votes", Path: "/votes"},
	"sysvar:recentBlockhashes": {Slug: TabBlockhashes, Title: "Blockhashes", Path: "/blockhashes"},
	"sysvar:slotHashes":        {Slug: TabHashes, Title: "Hashes", Path: "/hashes"},
	"sysvar:stakeHistory":      {Slug: TabStakeHistory, Title: "Stake History", Path: "/stake-history"},
	"config:validatorInfo":     {Slug: TabPublicKeys, Title: "Public Keys", Path: "/public-keys"},
}

// tokenTabsHidden suppresses the tokens tab. Bare program names cover every
// sub-type of that program.
var tokenTabsHidden = []string{
	"spl-token:mint",
	"config",
	"vote",
	"sysvar",
}

// TabKey joins the program and parsed type with ":". Either side may be empty.
func TabKey(data *models.ProgramData) string {
	if data == nil {
		return ":"
	}
	return data.Program + ":" + data.ParsedType()
}

// ResolveTabs returns the tab bar for an account: history first, then the
// program-keyed tab, then the compound-keyed tab, then tokens unless hidden.
// The two lookups are independent and their results are not deduplicated.
func ResolveTabs(data *models.ProgramData) []Tab {
	tabs := []Tab{historyTab}
	key := TabKey(data)

	if data != nil {
		if tab, ok := tabsLookup[data.Program]; ok {
			tabs = append(tabs, tab)
		}
		if tab, ok := tabsLookup[key]; ok {
			tabs = append(tabs, tab)
		}
	}

	if data == nil || !(slices.Contains(tokenTabsHidden, data.Program) || slices.Contains(tokenTabsHidden, key)) {
		tabs = append(tabs, tokensTab)
	}
	return tabs
}

// HasTab reports whether slug is part of tabs.
func HasTab(tabs []Tab, slug TabSlug) bool {
	return slices.ContainsFunc(tabs, func(t Tab) bool { return t.Slug == slug })
}

// TabRenders reports whether the content of tab can be drawn for data.
// Program-specific tabs need data of the matching program and parsed type.
func TabRenders(tab TabSlug, data *models.ProgramData) bool {
	switch tab {
	case TabVotes:
		return data != nil && data.Program == "vote"
	case TabPublicKeys:
		return TabKey(data) == "config:validatorInfo"
	case TabHashes:
		return TabKey(data) == "sysvar:slotHashes"
	case TabStakeHistory:
		return TabKey(data) == "sysvar:stakeHistory"
	case TabBlockhashes:
		return TabKey(data) == "sysvar:recentBlockhashes"
	default:
		return true
	}
}

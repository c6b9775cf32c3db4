package account

import "net/url"

// GuardResult is the outcome of checking a requested tab against a tab set.
// Either Tab is set and Redirect is false, or Redirect is true and
// RedirectTo holds the canonical address path.
type GuardResult struct {
	Tab        TabSlug `json:"tab,omitempty"`
	Redirect   bool    `json:"redirect"`
	RedirectTo string  `json:"redirect_to,omitempty"`
}

// Guard resolves the requested tab. No tab means history, which every tab
// set contains, so guarding a redirect target never redirects again.
func Guard(requested string, tabs []Tab, basePath string) GuardResult {
	if requested == "" {
		return GuardResult{Tab: TabHistory}
	}
	if !HasTab(tabs, TabSlug(requested)) {
		return GuardResult{Redirect: true, RedirectTo: basePath}
	}
	return GuardResult{Tab: TabSlug(requested)}
}

// AddressPath is the canonical page of an address, with no tab suffix.
func AddressPath(address string) string {
	return "/address/" + address
}

// TabPath is the link of one tab of an address.
func TabPath(address string, tab Tab) string {
	return AddressPath(address) + tab.Path
}

// ClusterPath appends the cluster query parameter to a path. The default
// cluster is left implicit.
func ClusterPath(path, cluster string) string {
	if cluster == "" || cluster == DefaultCluster {
		return path
	}
	return path + "?" + url.Values{"cluster": {cluster}}.Encode()
}

// DefaultCluster is the cluster links omit from their query string.
const DefaultCluster = "mainnet-beta"

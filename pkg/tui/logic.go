package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"solexplorer/pkg/account"
	"solexplorer/pkg/models"
	"solexplorer/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// resolve re-runs the page pipeline for the current address and tab. A tab
// the account does not offer falls back to the address page.
func (m *model) resolve() {
	m.page = m.ctrl.Load(m.address, m.tab)
	if m.page.State == account.PageRedirect {
		m.tab = ""
		m.page = m.ctrl.Load(m.address, m.tab)
	}

	key := contentKey(m.activeCluster(), m.page)
	if key != m.content.key {
		m.content = tabContent{key: key, loading: key != ""}
	}
	m.lastUpdate = time.Now()
}

// refresh resolves the page and starts loading remote tab data if needed.
func (m *model) refresh() tea.Cmd {
	m.resolve()
	return m.loadTabCmd()
}

// contentKey names the remote data a displayed page needs on cluster, or ""
// when the selected tab renders from the account itself.
func contentKey(cluster string, page account.Page) string {
	if page.State != account.PageDisplay {
		return ""
	}
	switch page.Tab {
	case account.TabHistory, account.TabTokens, account.TabLargest:
		return cluster + ":" + page.Address + "/" + string(page.Tab)
	}
	return ""
}

func (m *model) loadTabCmd() tea.Cmd {
	if !m.content.loading || m.content.requested {
		return nil
	}
	m.content.requested = true

	w := m.watcher
	key := m.content.key
	pubkey := m.page.Key
	switch m.page.Tab {
	case account.TabHistory:
		return func() tea.Msg {
			sigs, err := w.Signatures(context.Background(), pubkey)
			return signaturesMsg{key: key, sigs: sigs, err: err}
		}
	case account.TabTokens:
		return func() tea.Msg {
			holdings, err := w.TokenAccounts(context.Background(), pubkey)
			return holdingsMsg{key: key, holdings: holdings, err: err}
		}
	case account.TabLargest:
		return func() tea.Msg {
			largest, err := w.LargestAccounts(context.Background(), pubkey)
			return largestMsg{key: key, largest: largest, err: err}
		}
	}
	return nil
}

// cycleTab moves the tab selection by delta within the page's tab bar.
func (m *model) cycleTab(delta int) {
	tabs := m.page.Tabs
	if m.page.State != account.PageDisplay || len(tabs) == 0 {
		return
	}
	idx := 0
	for i, t := range tabs {
		if t.Slug == m.page.Tab {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(tabs)) % len(tabs)
	m.tab = string(tabs[idx].Slug)
	if tabs[idx].Slug == account.TabHistory {
		m.tab = ""
	}
}

// activeCluster returns the cluster the watcher is pointed at.
func (m model) activeCluster() string {
	if m.clusterIdx >= 0 && m.clusterIdx < len(m.clusters) {
		return m.clusters[m.clusterIdx].Name
	}
	return ""
}

// explorerURL is the web explorer link of the current page.
func (m model) explorerURL() (string, error) {
	if m.clusterIdx < 0 || m.clusterIdx >= len(m.clusters) {
		return "", fmt.Errorf("no cluster selected")
	}
	base := strings.TrimRight(m.clusters[m.clusterIdx].ExplorerURL, "/")
	if base == "" {
		return "", fmt.Errorf("explorer URL not configured for %s", m.activeCluster())
	}
	path := account.AddressPath(m.page.Address)
	for _, t := range m.page.Tabs {
		if t.Slug == m.page.Tab {
			path = account.TabPath(m.page.Address, t)
		}
	}
	return base + account.ClusterPath(path, m.activeCluster()), nil
}

// lookup walks nested objects of a parsed account.
func lookup(v any, path ...string) any {
	for _, p := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[p]
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		var f float64
		_, err := fmt.Sscan(n, &f)
		return f, err == nil
	}
	return 0, false
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

// stakeHistoryPoint keeps effective stake exact in Lamports; Effective is
// only for plotting.
type stakeHistoryPoint struct {
	Epoch     float64
	Lamports  uint64
	Effective float64
}

// stakeHistorySeries extracts effective stake per epoch from the stake
// history sysvar, oldest epoch first.
func stakeHistorySeries(data *models.ProgramData) []stakeHistoryPoint {
	var points []stakeHistoryPoint
	for _, entry := range data.InfoList() {
		epoch, ok := asFloat(lookup(entry, "epoch"))
		if !ok {
			continue
		}
		lamports, ok := asUint(lookup(entry, "stakeHistory", "effective"))
		if !ok {
			continue
		}
		points = append(points, stakeHistoryPoint{Epoch: epoch, Lamports: lamports, Effective: float64(lamports)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Epoch < points[j].Epoch })
	return points
}

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

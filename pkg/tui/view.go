package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"solexplorer/pkg/account"
	"solexplorer/pkg/models"
	"solexplorer/pkg/utils"
	"solexplorer/pkg/watcher"
)

const maxRows = 25

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	if m.entering {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
				titleStyle.Render("Open Account"),
				"\n",
				m.input.View(),
				"\n",
				subtleStyle.Render("Enter to open • Esc to cancel"),
			)),
		)
	}

	targetWidth := m.width - 4
	if targetWidth < 0 {
		targetWidth = 0
	}

	content := boxStyle.Width(targetWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		"",
		m.viewport.View(),
	))

	// Footer
	line1 := "tab:next tab • /:open • r:refetch • c:cpy • o:web • ?:hlp • q:quit"
	var extra []string
	if len(m.clusters) > 1 {
		extra = append(extra, "n:cluster")
	}
	if len(m.bookmarks) > 1 {
		extra = append(extra, "b:bookmark")
	}
	extra = append(extra, "↑/↓:scroll", fmt.Sprintf("v%s", Version))
	line2 := strings.Join(extra, " • ")

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}

	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	h := m.height - 1
	if h < 0 {
		h = 0
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewTopBar(),
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func (m model) viewTopBar() string {
	var statusStr string
	switch m.clusterStatus {
	case watcher.Connected:
		statusStr = infoStyle.Render("● connected")
	case watcher.Failure:
		statusStr = errStyle.Render("● unreachable")
	default:
		statusStr = warnStyle.Render(m.spinner.View() + " connecting")
	}
	if m.clusterStatus == watcher.Connected && m.watcher != nil {
		if _, health := m.watcher.ClusterStatus(); health.Latency > 0 {
			ms := float64(health.Latency.Microseconds()) / 1000
			statusStr += subtleStyle.Render(fmt.Sprintf(" (%sms)", utils.FormatFloat(ms, 1)))
		}
	}
	leftBlock := lipgloss.JoinHorizontal(lipgloss.Top,
		subtleStyle.Render(fmt.Sprintf(" %s ", m.activeCluster())),
		statusStr,
	)

	lastUpdStr := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdStr = m.lastUpdate.Format("15:04:05")
	}
	rightBlock := subtleStyle.Render(fmt.Sprintf("Updated: %s ", lastUpdStr))

	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)
}

func (m model) viewHeader() string {
	header := m.registry.Header(m.page.Address, m.activeCluster())
	title := titleStyle.Render(header.Title)
	pretitle := subtleStyle.Render(strings.ToUpper(header.Pretitle))
	return lipgloss.JoinVertical(lipgloss.Left, pretitle, title)
}

// viewBody renders everything below the header; it scrolls in the viewport.
func (m model) viewBody() string {
	switch m.page.State {
	case account.PageInvalid:
		if m.address == "" {
			return subtleStyle.Render("Press / to open an account.")
		}
		return errStyle.Render(m.page.Message)
	case account.PageLoading:
		return fmt.Sprintf("%s Loading %s...", m.spinner.View(), m.page.Address)
	case account.PageFailed:
		return lipgloss.JoinVertical(lipgloss.Left,
			errStyle.Render(m.page.Message),
			subtleStyle.Render("Press r to try again."),
		)
	case account.PageDisplay:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.viewPrimary(),
			"",
			m.viewTabBar(),
			"",
			m.viewTabContent(),
		)
	}
	return ""
}

func row(label string, value any) string {
	return labelStyle.Render(label) + utils.FormatValue(value)
}

func (m model) viewPrimary() string {
	acc := m.page.Account
	view := m.page.View

	var rows []string
	rows = append(rows, row("Address", acc.Pubkey.String()))
	if acc.Lamports != nil {
		rows = append(rows, row("Balance (SOL)", utils.FormatLamports(*acc.Lamports)))
	}
	if d := acc.Details; d != nil {
		rows = append(rows,
			row("Allocated Data Size", fmt.Sprintf("%s byte(s)", utils.AddCommas(fmt.Sprint(d.Space)))),
			row("Assigned Program Id", d.Owner.String()),
			row("Executable", yesNo(d.Executable)),
		)
	}

	title := "Overview"
	data := view.Data
	info := data.Info()
	switch view.Variant {
	case account.VariantStake:
		title = "Stake Account"
		rows = append(rows, m.stakeRows(view.Stake)...)
	case account.VariantToken:
		switch data.ParsedType() {
		case "mint":
			title = "Token Mint"
			rows = append(rows,
				row("Current Supply", lookup(info, "supply")),
				row("Decimals", lookup(info, "decimals")),
				row("Mint Authority", lookup(info, "mintAuthority")),
				row("Freeze Authority", lookup(info, "freezeAuthority")),
			)
		default:
			title = "Token Account"
			rows = append(rows,
				row("Mint", m.tokenName(lookup(info, "mint"))),
				row("Owner", lookup(info, "owner")),
				row("Token Balance", lookup(info, "tokenAmount", "uiAmountString")),
				row("Status", lookup(info, "state")),
			)
		}
	case account.VariantNonce:
		title = "Nonce Account"
		rows = append(rows,
			row("Authority", lookup(info, "authority")),
			row("Blockhash", lookup(info, "blockhash")),
			row("Fee", lookup(info, "feeCalculator", "lamportsPerSignature")),
		)
	case account.VariantVote:
		title = "Vote Account"
		rows = append(rows,
			row("Validator Identity", lookup(info, "nodePubkey")),
			row("Authorized Withdrawer", lookup(info, "authorizedWithdrawer")),
			row("Commission", lookup(info, "commission")),
			row("Root Slot", lookup(info, "rootSlot")),
		)
	case account.VariantSysvar:
		title = "Sysvar Account"
		rows = append(rows, row("Type", data.ParsedType()))
	case account.VariantConfig:
		title = "Config Account"
		rows = append(rows, row("Type", data.ParsedType()))
		if name := lookup(info, "configData", "name"); name != nil {
			rows = append(rows, row("Name", name))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		tableHeaderStyle.Render(title),
		strings.Join(rows, "\n"),
	)
}

func (m model) stakeRows(stake *account.StakeView) []string {
	if stake == nil {
		return nil
	}
	rows := []string{row("Type", stake.Kind)}
	if stake.Activation != nil {
		rows = append(rows,
			row("Activation", stake.Activation.State),
			row("Active Stake (SOL)", utils.FormatLamports(stake.Activation.Active)),
			row("Inactive Stake (SOL)", utils.FormatLamports(stake.Activation.Inactive)),
		)
	}
	rows = append(rows,
		row("Staker", lookup(stake.Body, "meta", "authorized", "staker")),
		row("Withdrawer", lookup(stake.Body, "meta", "authorized", "withdrawer")),
	)
	if voter := lookup(stake.Body, "stake", "delegation", "voter"); voter != nil {
		rows = append(rows,
			row("Delegated Vote Address", voter),
			row("Activation Epoch", lookup(stake.Body, "stake", "delegation", "activationEpoch")),
		)
	}
	return rows
}

func (m model) tokenName(mint any) string {
	s, _ := mint.(string)
	if info, ok := m.registry.Lookup(s, m.activeCluster()); ok {
		return fmt.Sprintf("%s (%s)", s, info.Name)
	}
	return utils.FormatValue(mint)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (m model) viewTabBar() string {
	var parts []string
	for _, t := range m.page.Tabs {
		if t.Slug == m.page.Tab {
			parts = append(parts, activeTabStyle.Render(t.Title))
		} else {
			parts = append(parts, inactiveTabStyle.Render(t.Title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m model) viewTabContent() string {
	var data *models.ProgramData
	if d := m.page.Account.Details; d != nil {
		data = d.Data
	}
	if !account.TabRenders(m.page.Tab, data) {
		return subtleStyle.Render("Nothing to show for this account.")
	}

	if m.content.key != "" {
		if m.content.loading {
			return fmt.Sprintf("%s Loading...", m.spinner.View())
		}
		if m.content.err != nil {
			return errStyle.Render("Failed to load: " + m.content.err.Error())
		}
	}

	switch m.page.Tab {
	case account.TabHistory:
		return m.viewHistory()
	case account.TabTokens:
		return m.viewHoldings()
	case account.TabLargest:
		return m.viewLargest()
	case account.TabVotes:
		return viewList(data.Info(), "votes", "SLOT", "CONFIRMATIONS", "slot", "confirmationCount")
	case account.TabHashes:
		return viewList(data.Parsed, "info", "SLOT", "BLOCKHASH", "slot", "hash")
	case account.TabBlockhashes:
		return viewList(data.Parsed, "info", "BLOCKHASH", "FEE (LAMPORTS)", "blockhash", "feeCalculator.lamportsPerSignature")
	case account.TabPublicKeys:
		return viewList(data.Info(), "keys", "PUBKEY", "SIGNER", "pubkey", "signer")
	case account.TabStakeHistory:
		return m.viewStakeHistory(data)
	}
	return ""
}

func (m model) viewHistory() string {
	if len(m.content.signatures) == 0 {
		return subtleStyle.Render("No transaction history found")
	}
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-20s %-12s %-20s %s", "SIGNATURE", "SLOT", "TIME", "RESULT"))}
	for _, sig := range m.content.signatures {
		when := "-"
		if sig.BlockTime != nil {
			when = sig.BlockTime.Format("2006-01-02 15:04:05")
		}
		result := infoStyle.Render("Success")
		if sig.Failed {
			result = errStyle.Render("Failed")
		}
		rows = append(rows, fmt.Sprintf("%-20s %-12s %-20s %s",
			utils.ShortAddress(sig.Signature, 8),
			utils.AddCommas(fmt.Sprint(sig.Slot)),
			when,
			result,
		))
	}
	return strings.Join(rows, "\n")
}

func (m model) viewHoldings() string {
	if len(m.content.holdings) == 0 {
		return subtleStyle.Render("No token holdings found")
	}
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-20s %-30s %s", "ACCOUNT", "MINT", "BALANCE"))}
	for _, h := range m.content.holdings {
		mint := utils.ShortAddress(h.Mint, 6)
		if info, ok := m.registry.Lookup(h.Mint, m.activeCluster()); ok {
			mint = fmt.Sprintf("%s (%s)", mint, utils.TruncateString(info.Name, 12))
		}
		rows = append(rows, fmt.Sprintf("%-20s %-30s %s", utils.ShortAddress(h.Account, 6), mint, h.Amount))
	}
	return strings.Join(rows, "\n")
}

func (m model) viewLargest() string {
	if len(m.content.largest) == 0 {
		return subtleStyle.Render("No holders found")
	}
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-5s %-46s %s", "RANK", "ACCOUNT", "BALANCE"))}
	for i, l := range m.content.largest {
		rows = append(rows, fmt.Sprintf("%-5d %-46s %s", i+1, l.Address, l.Amount))
	}
	return strings.Join(rows, "\n")
}

// viewList renders two fields of each object in the list found at key.
// Field paths are dot separated.
func viewList(parent map[string]any, key, h1, h2, f1, f2 string) string {
	list, _ := parent[key].([]any)
	if len(list) == 0 {
		return subtleStyle.Render("No entries")
	}
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-46s %s", h1, h2))}
	for i, item := range list {
		if i >= maxRows {
			rows = append(rows, subtleStyle.Render(fmt.Sprintf("... %d more", len(list)-maxRows)))
			break
		}
		rows = append(rows, fmt.Sprintf("%-46s %s",
			utils.FormatValue(lookup(item, strings.Split(f1, ".")...)),
			utils.FormatValue(lookup(item, strings.Split(f2, ".")...)),
		))
	}
	return strings.Join(rows, "\n")
}

func (m model) viewStakeHistory(data *models.ProgramData) string {
	points := stakeHistorySeries(data)
	if len(points) == 0 {
		return subtleStyle.Render("No stake history")
	}

	var graph string
	if len(points) > 1 {
		series := make([]float64, len(points))
		for i, p := range points {
			series[i] = p.Effective / float64(utils.LamportsPerSOL)
		}
		graphWidth := m.viewport.Width - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graph = asciigraph.Plot(series,
			asciigraph.Height(8),
			asciigraph.Width(graphWidth),
			asciigraph.Caption(fmt.Sprintf("Effective stake (SOL), epochs %.0f-%.0f", points[0].Epoch, points[len(points)-1].Epoch)),
		)
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-10s %s", "EPOCH", "EFFECTIVE (SOL)"))}
	for i := len(points) - 1; i >= 0 && len(points)-i <= maxRows; i-- {
		p := points[i]
		rows = append(rows, stakeHistoryRow(p))
	}
	return lipgloss.JoinVertical(lipgloss.Left, graph, "", strings.Join(rows, "\n"))
}

func stakeHistoryRow(p stakeHistoryPoint) string {
	return fmt.Sprintf("%-10.0f %s", p.Epoch, utils.FormatLamports(p.Lamports))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"Tab/l/Right: Next Tab",
		"S-Tab/h/Left: Prev Tab",
		"/: Open Address",
		"r: Refetch Account",
		"c: Copy Address",
		"o: Open in Explorer",
		"n: Next Cluster",
		"b: Next Bookmark",
		"↑/↓: Scroll",
		"q/esc: Quit",
		"?: Toggle Help",
	}

	header := titleStyle.Render("Help")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

package tui

import (
	"strings"
	"time"

	"solexplorer/pkg/account"
	"solexplorer/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case refreshMsg:
		cmds = append(cmds, m.refresh())

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))

		switch data := msg.Data.(type) {
		case watcher.AccountUpdate:
			if m.address != "" && data.Key.Equals(m.page.Key) {
				cmds = append(cmds, m.refresh())
			}
		case watcher.ClusterUpdate:
			m.clusterStatus = data.Status
			if m.address != "" {
				cmds = append(cmds, m.refresh())
			}
		}

	case signaturesMsg:
		if msg.key == m.content.key {
			m.content.loading = false
			m.content.signatures = msg.sigs
			m.content.err = msg.err
		}

	case holdingsMsg:
		if msg.key == m.content.key {
			m.content.loading = false
			m.content.holdings = msg.holdings
			m.content.err = msg.err
		}

	case largestMsg:
		if msg.key == m.content.key {
			m.content.loading = false
			m.content.largest = msg.largest
			m.content.err = msg.err
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 8
		m.viewport.Height = msg.Height - 14
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}

	case tea.KeyMsg:
		if m.entering {
			return m.updateInput(msg)
		}

		if m.showHelp {
			switch msg.String() {
			case "?", "esc", "q":
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "?":
			m.showHelp = true
			return m, nil
		case "/":
			m.entering = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case "tab", "right", "l":
			m.cycleTab(1)
			cmds = append(cmds, m.refresh())
			m.viewport.GotoTop()
		case "shift+tab", "left", "h":
			m.cycleTab(-1)
			cmds = append(cmds, m.refresh())
			m.viewport.GotoTop()
		case "r":
			if m.address != "" {
				m.page = m.ctrl.Retry(m.address, m.tab)
				m.content = tabContent{}
				cmds = append(cmds, m.refresh())
				m.statusMessage = "Refetching account..."
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "c":
			if m.page.Address != "" {
				if err := clipboard.WriteAll(m.page.Address); err != nil {
					m.statusMessage = "Failed to copy to clipboard"
				} else {
					m.statusMessage = "Address copied to clipboard!"
				}
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "o":
			if m.page.Address != "" {
				url, err := m.explorerURL()
				if err == nil {
					err = openBrowser(url)
				}
				if err != nil {
					m.statusMessage = "Failed to open browser: " + err.Error()
				} else {
					m.statusMessage = "Opened " + url
				}
				cmds = append(cmds, clearStatusAfter(3*time.Second))
			}
		case "n":
			if len(m.clusters) > 1 {
				m.clusterIdx = (m.clusterIdx + 1) % len(m.clusters)
				m.watcher.SetCluster(m.clusters[m.clusterIdx])
				m.clusterStatus = watcher.Connecting
				m.content = tabContent{}
				m.statusMessage = "Switched to " + m.activeCluster()
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				if m.address != "" {
					cmds = append(cmds, m.refresh())
				}
			}
		case "b":
			if len(m.bookmarks) > 0 {
				m.bookmarkIdx = (m.bookmarkIdx + 1) % len(m.bookmarks)
				m.address = m.bookmarks[m.bookmarkIdx].Address
				m.tab = ""
				cmds = append(cmds, m.refresh())
				m.viewport.GotoTop()
			}
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clearStatusMsg:
		m.statusMessage = ""
	}

	m.viewport.SetContent(m.viewBody())
	return m, tea.Batch(cmds...)
}

// updateInput handles keys while the address prompt is focused.
func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.address == "" {
			return m, tea.Quit
		}
		m.entering = false
		m.input.Blur()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		// Accept pasted explorer paths as well as bare addresses.
		value = strings.TrimPrefix(value, account.AddressPath(""))
		address, tab, _ := strings.Cut(value, "/")
		address, _, _ = strings.Cut(address, "?")
		tab, _, _ = strings.Cut(tab, "?")

		m.entering = false
		m.input.Blur()
		m.address = address
		m.tab = tab
		cmd := m.refresh()
		m.viewport.GotoTop()
		m.viewport.SetContent(m.viewBody())
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

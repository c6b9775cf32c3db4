package tui

import (
	"time"

	"solexplorer/pkg/account"
	"solexplorer/pkg/config"
	"solexplorer/pkg/models"
	"solexplorer/pkg/tokens"
	"solexplorer/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}
type refreshMsg struct{}

type signaturesMsg struct {
	key  string
	sigs []models.Signature
	err  error
}

type holdingsMsg struct {
	key      string
	holdings []models.TokenHolding
	err      error
}

type largestMsg struct {
	key     string
	largest []models.LargestAccount
	err     error
}

// tabContent holds the remotely loaded part of the selected tab.
type tabContent struct {
	key        string // address/tab the data belongs to
	loading    bool
	requested  bool
	err        error
	signatures []models.Signature
	holdings   []models.TokenHolding
	largest    []models.LargestAccount
}

// --- Model ---

type model struct {
	watcher       *watcher.Watcher
	sub           watcher.Subscriber
	ctrl          *account.Controller
	registry      *tokens.Registry
	clusters      []config.ClusterConfig
	clusterIdx    int
	bookmarks     []config.AddressConfig
	bookmarkIdx   int
	address       string
	tab           string
	page          account.Page
	content       tabContent
	clusterStatus watcher.ClusterStatus
	width         int
	height        int
	spinner       spinner.Model
	input         textinput.Model
	entering      bool
	showHelp      bool
	statusMessage string
	viewport      viewport.Model
	lastUpdate    time.Time
}

func initialModel(w *watcher.Watcher, registry *tokens.Registry, cfg config.Config, address, tab string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Account address (base58)"
	ti.Width = 50
	ti.CharLimit = 64

	m := model{
		watcher:    w,
		sub:        w.Subscribe(),
		ctrl:       account.NewController(w),
		registry:   registry,
		clusters:   cfg.Clusters,
		clusterIdx: cfg.SelectedCluster,
		bookmarks:  cfg.Addresses,
		address:    address,
		tab:        tab,
		spinner:    s,
		input:      ti,
		viewport:   viewport.New(0, 0),
	}

	if m.address == "" && len(m.bookmarks) > 0 {
		m.address = m.bookmarks[0].Address
	}
	if m.address == "" {
		m.entering = true
		m.input.Focus()
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{listenForWatcher(m.sub), m.spinner.Tick, textinput.Blink}
	if m.address != "" {
		cmds = append(cmds, func() tea.Msg { return refreshMsg{} })
	}
	return tea.Batch(cmds...)
}

package tui

import (
	"fmt"

	"solexplorer/pkg/config"
	"solexplorer/pkg/logging"
	"solexplorer/pkg/tokens"
	"solexplorer/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the interactive explorer until the user quits. address and tab
// may be empty. It logs through the process-wide logger, which the caller
// points at a file (or nowhere) while the terminal is in use.
func Start(w *watcher.Watcher, registry *tokens.Registry, cfg config.Config, address, tab, version string) error {
	Version = version
	log := logging.Get().With().Str("component", "tui").Logger()

	m := initialModel(w, registry, cfg, address, tab)
	defer w.Unsubscribe(m.sub)

	log.Info().Str("cluster", m.activeCluster()).Str("address", address).Str("tab", tab).Msg("starting explorer")
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("explorer exited with error")
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	log.Info().Msg("explorer closed")
	return nil
}

// Command tui is the interactive terminal front-end to the alert engine: a
// bubbletea program that re-renders the current AlertRow table on every
// 100ms tick and offers a handful of keybindings to drive the engine's
// operation methods. Like streamcli, it never touches internal/broker or
// internal/store directly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/config"
	"github.com/kyp0717/momentum-scanner/internal/domain"
	"github.com/kyp0717/momentum-scanner/internal/engine"
	"github.com/kyp0717/momentum-scanner/internal/enrich"
	"github.com/kyp0717/momentum-scanner/internal/store"
)

// tickInterval matches spec.md's <=100ms consumer cadence requirement.
const tickInterval = 100 * time.Millisecond

func main() {
	logFile, err := os.OpenFile("momentum-scanner-tui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logFile = nil
	}
	var log *slog.Logger
	if logFile != nil {
		log = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var sightingsStore domain.SightingsStore
	if cfg.StoreEnabled() {
		sightingsStore = store.NewClient(cfg.Store.URL, cfg.Store.AnonKey, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := domain.DefaultSettings()
	settings.Host = cfg.TWS.Host
	if len(cfg.TWS.Ports) == 1 {
		p := cfg.TWS.Ports[0]
		settings.Port = &p
	}

	enricher := enrich.NewClient(log)
	eng := engine.NewEngine(ctx, settings, sightingsStore, enricher, log)
	eng.InitFromSightings(ctx)

	m := newModel(ctx, eng, log)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui exited with error: %v\n", err)
		os.Exit(1)
	}
}

type tickMsg struct{}

type model struct {
	ctx    context.Context
	eng    *engine.AlertEngine
	log    *slog.Logger
	table  table.Model
	status string
}

func newModel(ctx context.Context, eng *engine.AlertEngine, log *slog.Logger) model {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Symbol", Width: 8},
		{Title: "Last", Width: 8},
		{Title: "Chg%", Width: 8},
		{Title: "RVol", Width: 6},
		{Title: "Hits", Width: 5},
		{Title: "Catalyst", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	style := table.DefaultStyles()
	style.Header = style.Header.Bold(true).BorderBottom(true)
	style.Selected = style.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(style)

	return model{ctx: ctx, eng: eng, log: log, table: t, status: "stopped"}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			if m.eng.PollOn(m.ctx) {
				m.status = "polling"
			} else {
				m.eng.PollOff()
				m.status = "stopped"
			}
		case "c":
			m.eng.PollClear()
			m.status = "cleared"
		case "s":
			m.eng.RunPollScanners(m.ctx)
			m.status = "scanning"
		}
		return m, nil

	case tickMsg:
		for range m.eng.Tick(m.ctx) {
			// state already folded into m.eng; re-render below picks it up
		}
		m.table.SetRows(rowsFromEngine(m.eng))
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := fmt.Sprintf("Momentum Scanner -- status: %s -- seen: %d -- [p]oll [s]can [c]lear [q]uit\n\n",
		m.status, len(m.eng.AlertSeen))
	return header + m.table.View() + "\n"
}

func fmtDecimal(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func rowsFromEngine(eng *engine.AlertEngine) []table.Row {
	rows := make([]table.Row, 0, len(eng.AlertRows))
	for _, r := range eng.AlertRows {
		catalyst := ""
		if r.Catalyst != nil {
			catalyst = *r.Catalyst
		}
		rows = append(rows, table.Row{
			r.AlertTime,
			r.Symbol,
			fmtDecimal(r.Last),
			fmtDecimal(r.ChangePct),
			fmtDecimal(r.Rvol),
			fmt.Sprintf("%d", r.ScannerHits),
			catalyst,
		})
	}
	return rows
}

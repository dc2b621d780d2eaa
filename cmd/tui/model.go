package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"haggle-go/internal/negotiation"
	"haggle-go/internal/overlay"
	"haggle-go/internal/pricing"
	"haggle-go/internal/signal"
)

// runMsg carries a scheduler callback into Update, where all session state lives.
type runMsg struct{ fn func() }

type keyMap struct {
	ScrollUp   key.Binding
	ScrollDown key.Binding
	ExitIntent key.Binding
	CTA        key.Binding
	Counter    key.Binding
	Accept     key.Binding
	Reject     key.Binding
	Dismiss    key.Binding
	Raise      key.Binding
	Lower      key.Binding
	Submit     key.Binding
	Cancel     key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		ScrollUp:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "scroll down")),
		ExitIntent: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "leave page")),
		CTA:        key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "buy now")),
		Counter:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "counter")),
		Accept:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
		Reject:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
		Dismiss:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "close")),
		Raise:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "raise")),
		Lower:      key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "lower")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type styles struct {
	box          lipgloss.Style
	title        lipgloss.Style
	counterparty lipgloss.Style
	client       lipgloss.Style
	muted        lipgloss.Style
	outcome      lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		box:          lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
		title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		counterparty: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		client:       lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
		muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		outcome:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	}
}

type model struct {
	ov     *overlay.Overlay
	keys   keyMap
	help   help.Model
	input  textinput.Model
	spin   spinner.Model
	styles styles
	note   string
}

func newModel(ov *overlay.Overlay) model {
	ti := textinput.New()
	ti.Prompt = "your price: "
	ti.CharLimit = 24
	ti.Width = 24

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ov:     ov,
		keys:   defaultKeys(),
		help:   help.New(),
		input:  ti,
		spin:   sp,
		styles: defaultStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runMsg:
		msg.fn()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	machine := m.ov.Machine()
	switch machine.State() {
	case negotiation.StateIdle:
		return m.handlePage(msg)
	case negotiation.StateAwaitingAction:
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.apply(overlay.Command{Type: overlay.CmdAccept})
		case key.Matches(msg, m.keys.Reject):
			m.apply(overlay.Command{Type: overlay.CmdReject})
		case key.Matches(msg, m.keys.Counter):
			if m.apply(overlay.Command{Type: overlay.CmdStartCounter}) {
				m.input.SetValue(machine.Snapshot().CurrentBid.String())
				m.input.CursorEnd()
				return m, m.input.Focus()
			}
		case key.Matches(msg, m.keys.Dismiss):
			m.apply(overlay.Command{Type: overlay.CmdDismiss})
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	case negotiation.StateBidding:
		return m.handleBidding(msg)
	case negotiation.StateThinking:
		if key.Matches(msg, m.keys.Dismiss) {
			m.apply(overlay.Command{Type: overlay.CmdDismiss})
		}
	default:
		if key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.Cancel) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) handlePage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ScrollUp):
		m.apply(overlay.Command{Type: overlay.CmdScroll, Direction: signal.ScrollUp})
	case key.Matches(msg, m.keys.ScrollDown):
		m.apply(overlay.Command{Type: overlay.CmdScroll, Direction: signal.ScrollDown})
	case key.Matches(msg, m.keys.ExitIntent):
		m.apply(overlay.Command{Type: overlay.CmdPointer, Y: 0})
	case key.Matches(msg, m.keys.CTA):
		m.apply(overlay.Command{Type: overlay.CmdCTA})
		m.note = "checkout clicked"
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m model) handleBidding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	machine := m.ov.Machine()
	switch {
	case key.Matches(msg, m.keys.Raise):
		m.apply(overlay.Command{Type: overlay.CmdAdjust, Steps: 1})
		m.input.SetValue(machine.Snapshot().CurrentBid.String())
		return m, nil
	case key.Matches(msg, m.keys.Lower):
		m.apply(overlay.Command{Type: overlay.CmdAdjust, Steps: -1})
		m.input.SetValue(machine.Snapshot().CurrentBid.String())
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		m.apply(overlay.Command{Type: overlay.CmdBidText, Text: m.input.Value()})
		m.apply(overlay.Command{Type: overlay.CmdSubmit})
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.apply(overlay.Command{Type: overlay.CmdCancelCounter})
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) apply(cmd overlay.Command) bool {
	changed, err := m.ov.Apply(cmd)
	if err != nil {
		m.note = err.Error()
		return false
	}
	return changed
}

func (m model) View() string {
	snap := m.ov.Machine().Snapshot()
	var b strings.Builder

	if snap.State == negotiation.StateIdle {
		sig := m.ov.Trigger().Signals()
		b.WriteString(m.styles.title.Render("Product page") + "\n\n")
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("on page %ds · scroll reversals %d", sig.ElapsedSeconds, sig.ScrollReversals)))
		if m.note != "" {
			b.WriteString("\n" + m.styles.muted.Render(m.note))
		}
		b.WriteString("\n\n" + m.help.ShortHelpView(m.bindings(snap.State)))
		return b.String()
	}

	var body strings.Builder
	body.WriteString(m.styles.title.Render("Make us an offer") + "\n")
	body.WriteString(m.styles.muted.Render(fmt.Sprintf("list price %s · round %d/%d", pricing.FormatAmount(snap.BasePrice), snap.Round, snap.MaxRounds)) + "\n\n")
	for _, e := range snap.Transcript {
		body.WriteString(m.renderEntry(e) + "\n")
	}
	switch snap.State {
	case negotiation.StateBidding:
		body.WriteString("\n" + m.input.View() + "\n")
		body.WriteString(m.styles.muted.Render("minimum " + pricing.FormatAmount(snap.MinBid)))
	case negotiation.StateAgreed:
		body.WriteString("\n" + m.styles.outcome.Render("Deal at "+pricing.FormatAmount(snap.Agreed)))
	case negotiation.StateDismissed:
		body.WriteString("\n" + m.styles.muted.Render("Overlay closed"))
	}
	b.WriteString(m.styles.box.Render(strings.TrimRight(body.String(), "\n")))
	b.WriteString("\n" + m.help.ShortHelpView(m.bindings(snap.State)))
	return b.String()
}

func (m model) renderEntry(e negotiation.Entry) string {
	switch e.Source {
	case negotiation.SourcePlaceholder:
		return m.spin.View() + " " + m.styles.muted.Render(e.Message)
	case negotiation.SourceClient:
		return m.styles.client.Render("you  ") + e.Message
	default:
		return m.styles.counterparty.Render("shop ") + e.Message
	}
}

func (m model) bindings(state negotiation.State) []key.Binding {
	k := m.keys
	switch state {
	case negotiation.StateIdle:
		return []key.Binding{k.ScrollUp, k.ScrollDown, k.ExitIntent, k.CTA, k.Quit}
	case negotiation.StateAwaitingAction:
		if m.ov.Machine().Snapshot().CanCounter {
			return []key.Binding{k.Accept, k.Counter, k.Reject, k.Dismiss}
		}
		return []key.Binding{k.Accept, k.Reject, k.Dismiss}
	case negotiation.StateBidding:
		return []key.Binding{k.Raise, k.Lower, k.Submit, k.Cancel}
	case negotiation.StateThinking:
		return []key.Binding{k.Dismiss}
	default:
		return []key.Binding{k.Quit}
	}
}

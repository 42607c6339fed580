package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ojinta/portfolio/go-services/internal/watch"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	expiredStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

type (
	warningMsg   struct{ remaining time.Duration }
	tickMsg      struct{ remaining time.Duration }
	idleMsg      struct{}
	loggedOutMsg struct{ reason watch.LogoutReason }
	watchDoneMsg struct{ err error }
)

// teaNotifier forwards watcher events into the bubbletea program.
type teaNotifier struct{ p *tea.Program }

func (n teaNotifier) OnWarning(d time.Duration) { n.p.Send(warningMsg{d}) }
func (n teaNotifier) OnTick(d time.Duration) { n.p.Send(tickMsg{d}) }
func (n teaNotifier) OnIdle() { n.p.Send(idleMsg{}) }
func (n teaNotifier) OnLoggedOut(reason watch.LogoutReason) { n.p.Send(loggedOutMsg{reason}) }

type model struct {
	user      watch.User
	watcher   *watch.Watcher
	state     watch.State
	remaining time.Duration
	reason    watch.LogoutReason
	err       error
}

func newModel(u watch.User) *model {
	return &model{user: u}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "l":
			if m.watcher != nil && m.state != watch.LoggedOut {
				m.watcher.LogoutNow()
			}
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case warningMsg:
		m.state, m.remaining = watch.Warning, msg.remaining
	case tickMsg:
		m.remaining = msg.remaining
	case idleMsg:
		m.state = watch.Idle
	case loggedOutMsg:
		m.state, m.reason, m.remaining = watch.LoggedOut, msg.reason, 0
	case watchDoneMsg:
		m.err = msg.err
		if m.state == watch.LoggedOut {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *model) View() string {
	s := titleStyle.Render("Portfolio admin session") + "\n\n"
	s += fmt.Sprintf("Signed in as %s (%s)\n\n", m.user.Username, m.user.Role)
	switch m.state {
	case watch.Idle:
		s += okStyle.Render("Session active") + "\n"
	case watch.Warning:
		s += bannerStyle.Render("Your session expires in "+watch.FormatCountdown(m.remaining)) + "\n"
		s += "Save your work. Press l to log out now.\n"
	case watch.LoggedOut:
		msg := "Logged out"
		if m.reason == watch.ReasonExpired {
			msg = "Session expired, logged out"
		}
		s += expiredStyle.Render(msg) + "\n"
	}
	if m.err != nil {
		s += "\n" + expiredStyle.Render(m.err.Error()) + "\n"
	}
	return s + "\n" + helpStyle.Render("l: log out now • q: quit")
}

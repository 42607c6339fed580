package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/ojinta/portfolio/go-services/internal/watch"
)

func TestModel_WarningCountdown(t *testing.T) {
	m := newModel(watch.User{Username: "admin", Role: "ADMIN"})
	require.Contains(t, m.View(), "Session active")

	m.Update(warningMsg{remaining: 540 * time.Second})
	require.Contains(t, m.View(), "9:00")

	m.Update(tickMsg{remaining: 539 * time.Second})
	require.Contains(t, m.View(), "8:59")

	m.Update(idleMsg{})
	require.False(t, strings.Contains(m.View(), "expires in"))
}

func TestModel_LoggedOutQuitsWhenWatcherStops(t *testing.T) {
	m := newModel(watch.User{Username: "admin"})
	m.Update(loggedOutMsg{reason: watch.ReasonExpired})
	require.Contains(t, m.View(), "Session expired")

	_, cmd := m.Update(watchDoneMsg{})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}

func TestModel_QuitKey(t *testing.T) {
	m := newModel(watch.User{Username: "admin"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}

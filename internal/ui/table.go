package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomInfo is the shareable room banner printed once the room is open.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Open!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

func RenderRoomInfo(roomID, roomLink string) {
	fmt.Println(NewRoomInfo(roomID, roomLink).View())
}

// SessionSummary is the end-of-session report.
type SessionSummary struct {
	Role     string
	Room     string
	Outcome  string
	Duration time.Duration
	Quality  string
	Latency  time.Duration
	Packets  uint64
	Bytes    uint64
}

func SessionSummaryView(s SessionSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatTitle
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Role", s.Role},
		{"Room", s.Room},
		{"Outcome", s.Outcome},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Quality", s.Quality},
	})
	if s.Latency > 0 {
		t.AppendRow(table.Row{"Latency", s.Latency.Round(time.Millisecond).String()})
	}
	if s.Packets > 0 {
		t.AppendRow(table.Row{"Audio Packets", fmt.Sprintf("%d", s.Packets)})
		t.AppendRow(table.Row{"Audio Bytes", fmt.Sprintf("%d", s.Bytes)})
	}
	return t.Render()
}

func RenderSessionSummary(s SessionSummary) {
	fmt.Println(SessionSummaryView(s))
}

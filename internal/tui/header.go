package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var headerDimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

// Header renders the title bar with the chat and workspace of the session.
type Header struct {
	width     int
	version   string
	chatID    string
	workspace string
}

// NewHeader creates a new Header.
func NewHeader() *Header {
	return &Header{
		width: 80,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetSession sets the details shown next to the title.
func (h *Header) SetSession(version, chatID, workspace string) {
	h.version = version
	h.chatID = chatID
	h.workspace = workspace
}

// View renders the header.
func (h *Header) View() string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ECDC4")).
		Bold(true).
		Render("kairo")
	if h.version != "" {
		title += headerDimStyle.Render(" v" + h.version)
	}

	parts := []string{title}
	if h.chatID != "" {
		parts = append(parts, headerDimStyle.Render("chat "+truncate(h.chatID, 12)))
	}
	if h.workspace != "" {
		parts = append(parts, headerDimStyle.Render(truncate(h.workspace, maxInt(h.width/2, 20))))
	}

	line := parts[0]
	for _, p := range parts[1:] {
		line += headerDimStyle.Render("  ·  ") + p
	}

	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("240")).
		Render(line)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2 // title + bottom border
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

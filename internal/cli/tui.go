package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/nugallery/pkg/nuget"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// FrameworkListModel - Interactive target framework selection
// =============================================================================

// FrameworkListModel is the bubbletea model for choosing one target
// framework of a package.
type FrameworkListModel struct {
	Package    *nuget.Package
	Frameworks []*nuget.TargetFramework
	Cursor     int
	Offset     int
	Height     int
	Selected   *nuget.TargetFramework
}

func newFrameworkListModel(pkg *nuget.Package) FrameworkListModel {
	return FrameworkListModel{
		Package:    pkg,
		Frameworks: pkg.TargetFrameworks,
		Height:     15,
	}
}

func (m FrameworkListModel) Init() tea.Cmd {
	return nil
}

func (m FrameworkListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Frameworks)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Frameworks) == 0 {
				return m, tea.Quit
			}
			m.Selected = m.Frameworks[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m FrameworkListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Framework of " + m.Package.ID + " " + m.Package.Version))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Frameworks))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		tf := m.Frameworks[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			tf.Moniker,
			strconv.Itoa(len(tf.Assemblies)),
			strconv.Itoa(len(tf.Dependencies)),
			formatBytes(tf.SizeInBytes()),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("", "Framework", "Assemblies", "Dependencies", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if col >= 2 {
				return listDimStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Frameworks))))

	return b.String()
}

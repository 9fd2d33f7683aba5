package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	nugetapi "github.com/matzehuels/nugallery/pkg/integrations/nuget"
	"github.com/matzehuels/nugallery/pkg/nuget"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleLink    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleHeader      = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleBorder      = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented dim line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(w io.Writer, key, value string) {
	if value == "" {
		return
	}
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// printStats prints graph statistics on a single line.
func printStats(w io.Writer, nodes, edges, failed int) {
	parts := []string{
		fmt.Sprintf("%d packages", nodes),
		fmt.Sprintf("%d edges", edges),
	}
	if failed > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w, "  "+strings.Join(parts, StyleDim.Render(" · ")))
}

// =============================================================================
// Packages
// =============================================================================

// printPackage prints the metadata of pkg followed by a table of its
// target frameworks.
func printPackage(w io.Writer, pkg *nuget.Package) {
	fmt.Fprintln(w, StyleTitle.Render(pkg.ID+" "+pkg.Version))
	printKeyValue(w, "Authors", pkg.AuthorsOrOwners())
	printKeyValue(w, "Description", pkg.Description)
	if pkg.ProjectURL != "" {
		printKeyValue(w, "Project", StyleLink.Render(pkg.ProjectURL))
	}
	printKeyValue(w, "Download", pkg.DownloadURL)
	printKeyValue(w, "Size", formatBytes(pkg.SizeInBytes))
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(pkg.TargetFrameworks))
	for _, tf := range pkg.TargetFrameworks {
		rows = append(rows, []string{
			tf.Moniker,
			strconv.Itoa(len(tf.Assemblies)),
			strconv.Itoa(len(tf.Dependencies)),
			formatBytes(tf.SizeInBytes()),
		})
	}
	fmt.Fprintln(w, newTable("Framework", "Assemblies", "Dependencies", "Size").Rows(rows...).Render())
}

// printFramework prints the assemblies and dependencies of tf.
func printFramework(w io.Writer, tf *nuget.TargetFramework) {
	fmt.Fprintln(w, StyleTitle.Render(tf.Package().ID+" "+tf.Package().Version+" ("+tf.Moniker+")"))
	if len(tf.Assemblies) > 0 {
		fmt.Fprintln(w, StyleDim.Render("Assemblies"))
		for _, a := range tf.Assemblies {
			printDetail(w, "%-40s %s", a.Path, formatBytes(a.Size))
		}
	}
	if len(tf.Dependencies) > 0 {
		fmt.Fprintln(w, StyleDim.Render("Dependencies"))
		for _, d := range tf.Dependencies {
			printDetail(w, "%s %s", d.ID, d.VersionSpec)
		}
	}
}

func printSearch(w io.Writer, hits []nugetapi.SearchHit) {
	rows := make([][]string, len(hits))
	for i, h := range hits {
		rows[i] = []string{h.ID, h.Version, h.Authors, strconv.FormatInt(h.TotalDownloads, 10)}
	}
	fmt.Fprintln(w, newTable("Package", "Version", "Authors", "Downloads").Rows(rows...).Render())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

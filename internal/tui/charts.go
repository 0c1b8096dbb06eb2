package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/charts"
	"github.com/Mr-Dark-debug/freightview/internal/colors"
)

const (
	versionColWidth = 12
	cellWidth       = 4
)

// chartsModel is the chart-version matrix of one project: one row per
// version of the selected registry, one column per stage.
type chartsModel struct {
	project     string
	stages      []api.Stage
	index       *charts.Index
	palette     colors.Assignment
	registry    string
	showHistory bool

	row, col int
	loaded   bool
	err      error
	spinner  spinner.Model
}

func newChartsModel(project string, showHistory bool) chartsModel {
	return chartsModel{
		project:     project,
		showHistory: showHistory,
		index:       charts.Build(nil, nil),
		spinner:     spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(spinnerStyle)),
	}
}

// setStages rebuilds the index. The selected registry is kept while it
// still exists, otherwise the first registry seen is selected.
func (c *chartsModel) setStages(stages []api.Stage) {
	c.stages = stages
	c.palette = colors.Assign(stages)
	c.index = charts.Build(stages, c.palette.Of)
	c.loaded = true
	c.err = nil
	if !c.index.HasRegistry(c.registry) {
		c.registry, _ = c.index.FirstRegistry()
	}
	c.clampCursor()
}

func (c *chartsModel) versions() []string {
	if c.registry == "" {
		return nil
	}
	return c.index.Versions(c.registry)
}

func (c *chartsModel) clampCursor() {
	c.row = clamp(c.row, 0, maxInt(len(c.versions())-1, 0))
	c.col = clamp(c.col, 0, maxInt(len(c.stages)-1, 0))
}

func (c *chartsModel) move(dRow, dCol int) {
	c.row += dRow
	c.col += dCol
	c.clampCursor()
}

// cycleRegistry steps the registry selection, wrapping at both ends.
func (c *chartsModel) cycleRegistry(delta int) {
	regs := c.index.Registries()
	if len(regs) == 0 {
		return
	}
	i := 0
	for j, r := range regs {
		if r == c.registry {
			i = j
			break
		}
	}
	i = (i + delta + len(regs)) % len(regs)
	c.registry = regs[i]
	c.row = 0
	c.clampCursor()
}

// selected returns the stage and version under the cursor.
func (c chartsModel) selected() (stage, version string, ok bool) {
	vs := c.versions()
	if len(vs) == 0 || len(c.stages) == 0 {
		return "", "", false
	}
	return c.stages[c.col].Metadata.Name, vs[c.row], true
}

// cell renders one matrix cell.
func (c chartsModel) cell(version, stage string, selected bool) string {
	st, defined := c.index.Lookup(c.registry, version, stage)
	st, visible := charts.Visible(st, defined, c.showHistory)

	bg := cellEmpty
	if visible {
		bg = colors.Blend(st.Color, cellBackground, st.Opacity)
	}
	body := "    "
	switch {
	case visible && st.Border && selected:
		body = "[▪▪]"
	case visible && st.Border:
		body = "[  ]"
	case selected:
		body = " ▪▪ "
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(cellFrame)).
		Render(body)
}

// describe is the tooltip for the cell under the cursor.
func (c chartsModel) describe() string {
	stage, version, ok := c.selected()
	if !ok {
		return ""
	}
	st, defined := c.index.Lookup(c.registry, version, stage)
	switch {
	case !defined:
		return fmt.Sprintf("%s  %s not deployed", stage, version)
	case st.Current():
		return fmt.Sprintf("%s  %s current", stage, version)
	default:
		return fmt.Sprintf("%s  %s history (opacity %.2f)", stage, version, st.Opacity)
	}
}

func (c chartsModel) view(width, height int) string {
	if !c.loaded {
		if c.err != nil {
			return emptyStateStyle.Render(bannerErrorStyle.Render("failed to load stages: "+c.err.Error()) +
				"\n\n" + hintDescStyle.Render("press r to retry"))
		}
		return emptyStateStyle.Render(c.spinner.View() + " Loading stages...")
	}
	if c.index.Empty() || c.registry == "" {
		return emptyStateStyle.Render("No charts available")
	}

	var b strings.Builder

	toggle := toggleOffStyle.Render("[ ] SHOW HISTORY")
	if c.showHistory {
		toggle = toggleOnStyle.Render("[x] SHOW HISTORY")
	}
	b.WriteString(toggle + "\n\n")

	regs := c.index.Registries()
	pos := 1
	for i, r := range regs {
		if r == c.registry {
			pos = i + 1
		}
	}
	b.WriteString(registryStyle.Render("‹ "+truncate(c.registry, maxInt(width-20, 10))+" ›") +
		headerMetaStyle.Render(fmt.Sprintf("  %d/%d", pos, len(regs))) + "\n\n")

	// Stage heads, truncated to the cell width.
	head := strings.Repeat(" ", versionColWidth+1)
	for _, st := range c.stages {
		head += stageHeadStyle.Render(padRight(truncate(st.Metadata.Name, cellWidth), cellWidth)) + " "
	}
	b.WriteString(head + "\n")

	versions := c.versions()
	rows := height - 9
	start := scrollWindow(c.row, len(versions), rows)
	end := len(versions)
	if rows > 0 && start+rows < end {
		end = start + rows
	}
	for r := start; r < end; r++ {
		v := versions[r]
		label := versionLabelStyle
		if r == c.row {
			label = versionSelectedStyle
		}
		line := label.Width(versionColWidth).Render(truncate(v, versionColWidth)) + " "
		for col, st := range c.stages {
			line += c.cell(v, st.Metadata.Name, r == c.row && col == c.col) + " "
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + c.legend() + "\n")
	if d := c.describe(); d != "" {
		b.WriteString(detailLabelStyle.Render("▸ ") + detailValueStyle.Render(d))
	}

	return panelStyle.Width(width).Render(panelTitleStyle.Render("Charts") + "\n" + b.String())
}

func (c chartsModel) legend() string {
	var parts []string
	for _, st := range c.stages {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(c.palette.Of(st.Metadata.UID))).Render("■")
		parts = append(parts, swatch+" "+hintDescStyle.Render(st.Metadata.Name))
	}
	return strings.Join(parts, "  ")
}

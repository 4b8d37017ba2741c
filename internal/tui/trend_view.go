package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/keywords"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
)

const (
	trendStart = iota
	trendEnd
	trendUnit
	trendGroups
	trendTable
	trendFocusCount
)

const dateLayout = "2006-01-02"

type trendPanel struct {
	start  textinput.Model
	end    textinput.Model
	unit   int
	groups textarea.Model
	focus  int

	table table.Model
	run   *pipeline.TrendRun
	pivot datalab.Pivot
}

func newTrendPanel(cfg *config.Config, now time.Time) trendPanel {
	start := textinput.New()
	start.Placeholder = dateLayout
	start.CharLimit = 10
	start.Prompt = ""
	days := int(cfg.LookbackDuration().Hours() / 24)
	start.SetValue(now.AddDate(0, 0, -days).Format(dateLayout))

	end := textinput.New()
	end.Placeholder = dateLayout
	end.CharLimit = 10
	end.Prompt = ""
	end.SetValue(now.Format(dateLayout))

	groups := textarea.New()
	groups.Placeholder = "name: keyword, keyword"
	groups.ShowLineNumbers = false
	groups.SetHeight(5)
	groups.SetValue(strings.TrimSpace(cfg.DataLab.Groups))

	unit := 0
	for i, u := range datalab.Units() {
		if string(u) == cfg.DataLab.TimeUnit {
			unit = i
		}
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Period", Width: 12},
			{Title: "Group", Width: 24},
			{Title: "Ratio", Width: 10},
		}),
		table.WithHeight(5),
	)
	t.SetStyles(tableStyles())

	p := trendPanel{start: start, end: end, unit: unit, groups: groups, table: t}
	p.setFocus(trendStart)
	return p
}

func (p *trendPanel) setFocus(i int) tea.Cmd {
	p.focus = (i + trendFocusCount) % trendFocusCount
	p.start.Blur()
	p.end.Blur()
	p.groups.Blur()
	p.table.Blur()
	switch p.focus {
	case trendStart:
		return p.start.Focus()
	case trendEnd:
		return p.end.Focus()
	case trendGroups:
		return p.groups.Focus()
	case trendTable:
		p.table.Focus()
	}
	return nil
}

func (p *trendPanel) tableFocused() bool { return p.focus == trendTable }

// acceptsEnter is false while the group editor needs enter for new lines.
func (p *trendPanel) acceptsEnter() bool { return p.focus != trendGroups && p.focus != trendTable }

func (p *trendPanel) update(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch p.focus {
	case trendStart:
		p.start, cmd = p.start.Update(msg)
	case trendEnd:
		p.end, cmd = p.end.Update(msg)
	case trendUnit:
		units := datalab.Units()
		switch msg.String() {
		case "left", "h":
			p.unit = (p.unit + len(units) - 1) % len(units)
		case "right", "l", " ":
			p.unit = (p.unit + 1) % len(units)
		}
	case trendGroups:
		p.groups, cmd = p.groups.Update(msg)
	case trendTable:
		p.table, cmd = p.table.Update(msg)
	}
	return cmd
}

// query turns the form into a trend query. Unparseable groups lines are dropped.
func (p *trendPanel) query() (datalab.Query, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(p.start.Value()))
	if err != nil {
		return datalab.Query{}, fmt.Errorf("start date must be %s", dateLayout)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(p.end.Value()))
	if err != nil {
		return datalab.Query{}, fmt.Errorf("end date must be %s", dateLayout)
	}
	return datalab.Query{
		Start:  start,
		End:    end,
		Unit:   datalab.Units()[p.unit],
		Groups: keywords.Parse(p.groups.Value()),
	}, nil
}

func (p *trendPanel) setRun(run pipeline.TrendRun) {
	p.run = &run
	p.pivot = run.Pivot()
	rows := make([]table.Row, len(run.Points))
	for i, pt := range run.Points {
		rows[i] = table.Row{pt.Period.Format(dateLayout), pt.Title, fmt.Sprintf("%.5f", pt.Ratio)}
	}
	p.table.SetRows(rows)
	p.table.GotoTop()
}

func (p *trendPanel) resize(width, tableHeight int) {
	p.groups.SetWidth(max(20, width-18))
	p.table.SetWidth(width - 2)
	p.table.SetHeight(max(3, tableHeight))
}

func (p *trendPanel) formView() string {
	label := func(i int, s string) string {
		if p.focus == i {
			return labelActiveStyle.Render(s)
		}
		return labelStyle.Render(s)
	}

	var units []string
	for i, u := range datalab.Units() {
		if i == p.unit {
			units = append(units, choiceActiveStyle.Render("("+string(u)+")"))
		} else {
			units = append(units, choiceStyle.Render(" "+string(u)+" "))
		}
	}

	rows := []string{
		label(trendStart, "Start") + p.start.View(),
		label(trendEnd, "End") + p.end.View(),
		label(trendUnit, "Unit") + strings.Join(units, " "),
		lipgloss.JoinHorizontal(lipgloss.Top, label(trendGroups, "Groups"), p.groups.View()),
	}
	return strings.Join(rows, "\n")
}

func (p *trendPanel) resultView(width int) string {
	if p.run == nil {
		return ""
	}
	metrics := metricLabelStyle.Render("groups ") + metricValueStyle.Render(fmt.Sprint(len(p.pivot.Series))) +
		metricLabelStyle.Render("  points ") + metricValueStyle.Render(fmt.Sprint(len(p.run.Points))) +
		metricLabelStyle.Render("  unit ") + metricValueStyle.Render(string(p.run.Query.Unit))
	chart := renderTrendChart(p.pivot, width-2)
	if chart == "" {
		return metrics
	}
	return metrics + "\n" + chart
}

package tui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/engage"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
	"github.com/matheuskafuri/trendscope/internal/youtube"
)

var errMonths = errors.New("months must be a number between 1 and 24")

const (
	videoKeyword = iota
	videoMonths
	videoOrder
	videoTable
	videoFocusCount
)

type videoPanel struct {
	keyword textinput.Model
	months  textinput.Model
	order   int
	focus   int

	table table.Model
	run   *pipeline.VideoRun
}

func newVideoPanel(cfg *config.Config) videoPanel {
	kw := textinput.New()
	kw.Placeholder = "search keyword"
	kw.CharLimit = 100
	kw.Prompt = ""
	kw.SetValue(cfg.YouTube.Keyword)

	months := textinput.New()
	months.Placeholder = "1-24"
	months.CharLimit = 2
	months.Prompt = ""
	months.SetValue(strconv.Itoa(cfg.GetMonths()))

	order := 0
	for i, o := range youtube.Orders() {
		if string(o) == cfg.YouTube.Order {
			order = i
		}
	}

	t := table.New(
		table.WithColumns(videoColumns(80)),
		table.WithHeight(5),
	)
	t.SetStyles(tableStyles())

	p := videoPanel{keyword: kw, months: months, order: order, table: t}
	p.setFocus(videoKeyword)
	return p
}

// videoColumns gives the title column whatever the fixed columns leave over.
func videoColumns(width int) []table.Column {
	fixed := 17 + 12 + 10 + 10
	title := max(20, width-fixed-12)
	return []table.Column{
		{Title: "Published", Width: 17},
		{Title: "Title", Width: title},
		{Title: "Views", Width: 12},
		{Title: "Like/View", Width: 10},
		{Title: "Cmt/View", Width: 10},
	}
}

func (p *videoPanel) setFocus(i int) tea.Cmd {
	p.focus = (i + videoFocusCount) % videoFocusCount
	p.keyword.Blur()
	p.months.Blur()
	p.table.Blur()
	switch p.focus {
	case videoKeyword:
		return p.keyword.Focus()
	case videoMonths:
		return p.months.Focus()
	case videoTable:
		p.table.Focus()
	}
	return nil
}

func (p *videoPanel) tableFocused() bool { return p.focus == videoTable }

func (p *videoPanel) acceptsEnter() bool { return p.focus != videoTable }

func (p *videoPanel) update(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch p.focus {
	case videoKeyword:
		p.keyword, cmd = p.keyword.Update(msg)
	case videoMonths:
		p.months, cmd = p.months.Update(msg)
	case videoOrder:
		orders := youtube.Orders()
		switch msg.String() {
		case "left", "h":
			p.order = (p.order + len(orders) - 1) % len(orders)
		case "right", "l", " ":
			p.order = (p.order + 1) % len(orders)
		}
	case videoTable:
		p.table, cmd = p.table.Update(msg)
	}
	return cmd
}

// query builds the search for the window ending today.
func (p *videoPanel) query(now time.Time) (youtube.Query, error) {
	months, err := strconv.Atoi(strings.TrimSpace(p.months.Value()))
	if err != nil {
		return youtube.Query{}, errMonths
	}
	after, before, err := youtube.Window(now, months)
	if err != nil {
		return youtube.Query{}, err
	}
	return youtube.Query{
		Keyword:         strings.TrimSpace(p.keyword.Value()),
		Order:           youtube.Orders()[p.order],
		PublishedAfter:  after,
		PublishedBefore: before,
	}, nil
}

func (p *videoPanel) setRun(run pipeline.VideoRun) {
	p.run = &run
	rows := make([]table.Row, len(run.Rows))
	for i, r := range run.Rows {
		rows[i] = videoRow(r)
	}
	p.table.SetRows(rows)
	p.table.GotoTop()
}

func videoRow(r engage.Row) table.Row {
	return table.Row{
		formatPublished(r.PublishedAt),
		r.Title,
		formatCount(r.ViewCount),
		formatRatio(r.LikeRatio),
		formatRatio(r.CommentRatio),
	}
}

// selectedURL is the watch URL under the table cursor, if any.
func (p *videoPanel) selectedURL() string {
	if p.run == nil {
		return ""
	}
	i := p.table.Cursor()
	if i < 0 || i >= len(p.run.Rows) {
		return ""
	}
	return p.run.Rows[i].URL
}

func (p *videoPanel) resize(width, tableHeight int) {
	p.keyword.Width = max(20, width-18)
	p.table.SetColumns(videoColumns(width))
	p.table.SetWidth(width - 2)
	p.table.SetHeight(max(3, tableHeight))
}

func (p *videoPanel) formView() string {
	label := func(i int, s string) string {
		if p.focus == i {
			return labelActiveStyle.Render(s)
		}
		return labelStyle.Render(s)
	}

	var orders []string
	for i, o := range youtube.Orders() {
		if i == p.order {
			orders = append(orders, choiceActiveStyle.Render("("+string(o)+")"))
		} else {
			orders = append(orders, choiceStyle.Render(" "+string(o)+" "))
		}
	}

	rows := []string{
		label(videoKeyword, "Keyword") + p.keyword.View(),
		label(videoMonths, "Months") + p.months.View(),
		label(videoOrder, "Order") + strings.Join(orders, " "),
	}
	return strings.Join(rows, "\n")
}

func (p *videoPanel) resultView() string {
	if p.run == nil {
		return ""
	}
	r := p.run
	metric := func(name, value string) string {
		return metricLabelStyle.Render(name+" ") + metricValueStyle.Render(value)
	}
	window := dateOf(r.Query.PublishedAfter) + " → " + dateOf(r.Query.PublishedBefore)
	return strings.Join([]string{
		metric("keyword", r.Query.Keyword),
		metric("shown", formatCount(int64(r.Summary.Kept))),
		metric("fetched", formatCount(int64(r.Summary.Fetched))),
		metric("window", window),
	}, "  ")
}

func dateOf(ts string) string {
	if d, _, ok := strings.Cut(ts, "T"); ok {
		return d
	}
	return ts
}

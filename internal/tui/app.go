package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matheuskafuri/trendscope/internal/browser"
	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/export"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
	"github.com/matheuskafuri/trendscope/internal/youtube"
	"github.com/sirupsen/logrus"
)

type mode int

const (
	modeTrend mode = iota
	modeVideo
	modeHelp
)

func (m mode) String() string {
	switch m {
	case modeTrend:
		return "Search trend"
	case modeVideo:
		return "Video search"
	}
	return "Help"
}

// parseMode maps the --mode flag to a starting pipeline.
func parseMode(s string) (mode, error) {
	switch strings.ToLower(s) {
	case "", "trend":
		return modeTrend, nil
	case "video":
		return modeVideo, nil
	}
	return modeTrend, fmt.Errorf("unknown mode %q (want trend or video)", s)
}

type App struct {
	cfg *config.Config
	svc *pipeline.Services
	rec pipeline.Recorder

	mode     mode
	lastMode mode

	width  int
	height int

	trend   trendPanel
	video   videoPanel
	spinner spinner.Model

	running bool
	notice  string
	err     error

	now      func() time.Time
	openURL  func(string) error
	exportTo string
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Cfg      *config.Config
	Services *pipeline.Services
	Recorder pipeline.Recorder
	Mode     string
}

func NewApp(opts RunOpts) (*App, error) {
	start, err := parseMode(opts.Mode)
	if err != nil {
		return nil, err
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	now := time.Now()
	return &App{
		cfg:      opts.Cfg,
		svc:      opts.Services,
		rec:      opts.Recorder,
		mode:     start,
		lastMode: start,
		trend:    newTrendPanel(opts.Cfg, now),
		video:    newVideoPanel(opts.Cfg),
		spinner:  sp,
		now:      time.Now,
		openURL:  browser.Open,
		exportTo: opts.Cfg.ExportDirectory(),
	}, nil
}

func (a *App) Init() tea.Cmd {
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case tea.KeyMsg:
		// Notices and errors last until the next key press.
		a.err = nil
		a.notice = ""
		return a.handleKey(msg)

	case trendLoadedMsg:
		a.running = false
		a.trend.setRun(msg.run)
		a.resize()
		if len(msg.run.Points) == 0 {
			a.notice = "No trend data returned for these groups."
		} else {
			a.trend.setFocus(trendTable)
		}
		return a, a.recordCmd(func(rec pipeline.Recorder) error {
			_, err := pipeline.RecordTrend(rec, msg.run)
			return err
		})

	case videosLoadedMsg:
		a.running = false
		a.video.setRun(msg.run)
		a.resize()
		switch {
		case msg.run.Truncated:
			a.notice = fmt.Sprintf("Stopped after %d pages; results are incomplete.", msg.run.Pages)
		case len(msg.run.Rows) == 0:
			a.notice = "No videos with enough views in this window."
		default:
			a.video.setFocus(videoTable)
		}
		return a, a.recordCmd(func(rec pipeline.Recorder) error {
			_, err := pipeline.RecordVideo(rec, msg.run)
			return err
		})

	case runErrMsg:
		a.running = false
		a.err = msg.err
		return a, nil

	case exportDoneMsg:
		a.notice = "Saved " + strings.Join(msg.paths, ", ")
		return a, nil

	case spinner.TickMsg:
		if a.running {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1":
		if a.mode == modeHelp {
			a.mode = a.lastMode
		} else {
			a.lastMode = a.mode
			a.mode = modeHelp
		}
		return a, nil
	}

	if a.mode == modeHelp {
		switch msg.String() {
		case "esc", "q", "?":
			a.mode = a.lastMode
		}
		return a, nil
	}

	switch msg.String() {
	case "ctrl+t":
		if a.mode == modeTrend {
			a.mode = modeVideo
		} else {
			a.mode = modeTrend
		}
		a.lastMode = a.mode
		a.resize()
		return a, nil
	case "ctrl+r":
		return a, a.run()
	case "ctrl+e":
		return a, a.exportCmd()
	case "tab":
		return a, a.moveFocus(1)
	case "shift+tab":
		return a, a.moveFocus(-1)
	case "enter":
		if a.acceptsEnter() {
			return a, a.run()
		}
	}

	if a.tableFocused() {
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "?":
			a.lastMode = a.mode
			a.mode = modeHelp
			return a, nil
		case "esc":
			return a, a.moveFocus(1)
		case "o", "enter":
			if a.mode == modeVideo {
				if u := a.video.selectedURL(); u != "" {
					return a, openBrowserCmd(a.openURL, u)
				}
			}
			return a, nil
		}
	}

	if a.mode == modeTrend {
		return a, a.trend.update(msg)
	}
	return a, a.video.update(msg)
}

func (a *App) moveFocus(delta int) tea.Cmd {
	if a.mode == modeTrend {
		return a.trend.setFocus(a.trend.focus + delta)
	}
	return a.video.setFocus(a.video.focus + delta)
}

func (a *App) tableFocused() bool {
	if a.mode == modeTrend {
		return a.trend.tableFocused()
	}
	return a.video.tableFocused()
}

func (a *App) acceptsEnter() bool {
	if a.mode == modeTrend {
		return a.trend.acceptsEnter()
	}
	return a.video.acceptsEnter()
}

// run validates the active form and starts its fetch off the event loop.
// Credentials are checked before input.
func (a *App) run() tea.Cmd {
	if a.running {
		return nil
	}
	svc := a.svc

	var fetch tea.Cmd
	switch a.mode {
	case modeTrend:
		if svc == nil || svc.Trends == nil || !svc.Trends.HasCredentials() {
			a.err = datalab.ErrMissingCredentials
			return nil
		}
		q, err := a.trend.query()
		if err == nil {
			err = q.Validate()
		}
		if err == nil && len(q.Groups) == 0 {
			err = datalab.ErrNoGroups
		}
		if err != nil {
			a.err = err
			return nil
		}
		fetch = func() tea.Msg {
			run, err := svc.Trend(context.Background(), q)
			if err != nil {
				return runErrMsg{err: err}
			}
			return trendLoadedMsg{run: run}
		}
	case modeVideo:
		if svc == nil || svc.Videos == nil {
			a.err = youtube.ErrMissingKey
			return nil
		}
		q, err := a.video.query(a.now())
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			a.err = err
			return nil
		}
		fetch = func() tea.Msg {
			run, err := svc.Video(context.Background(), q)
			if err != nil {
				return runErrMsg{err: err}
			}
			return videosLoadedMsg{run: run}
		}
	default:
		return nil
	}

	a.running = true
	return tea.Batch(fetch, a.spinner.Tick)
}

func (a *App) recordCmd(record func(pipeline.Recorder) error) tea.Cmd {
	if a.rec == nil {
		return nil
	}
	rec := a.rec
	return func() tea.Msg {
		if err := record(rec); err != nil {
			logrus.WithError(err).Warn("recording run failed")
		}
		return nil
	}
}

var errNothingToExport = errors.New("nothing to export yet, run a query first")

// exportCmd writes the active results to the export directory.
func (a *App) exportCmd() tea.Cmd {
	dir := a.exportTo
	now := a.now()

	switch a.mode {
	case modeTrend:
		if a.trend.run == nil || len(a.trend.run.Points) == 0 {
			a.err = errNothingToExport
			return nil
		}
		points := a.trend.run.Points
		pv := a.trend.pivot
		return func() tea.Msg {
			csvPath, err := export.ToFile(dir, export.TrendFileName(now, "csv"), func(w io.Writer) error {
				return export.WriteTrendCSV(w, points)
			})
			if err != nil {
				return runErrMsg{err: err}
			}
			paths := []string{csvPath}
			pngPath, err := export.ToFile(dir, export.TrendFileName(now, "png"), func(w io.Writer) error {
				return export.RenderTrendPNG(w, pv)
			})
			switch {
			case errors.Is(err, export.ErrNotEnoughPoints):
			case err != nil:
				return runErrMsg{err: err}
			default:
				paths = append(paths, pngPath)
			}
			return exportDoneMsg{paths: paths}
		}
	case modeVideo:
		if a.video.run == nil {
			a.err = errNothingToExport
			return nil
		}
		run := a.video.run
		return func() tea.Msg {
			path, err := export.ToFile(dir, export.FileName(run.Query.Keyword, now), func(w io.Writer) error {
				return export.WriteCSV(w, run.Rows)
			})
			if err != nil {
				return runErrMsg{err: err}
			}
			return exportDoneMsg{paths: []string{path}}
		}
	}
	return nil
}

func openBrowserCmd(open func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		if err := open(url); err != nil {
			return runErrMsg{err: err}
		}
		return nil
	}
}

// resize gives the results table whatever height the other sections leave.
func (a *App) resize() {
	if a.width == 0 {
		return
	}
	inner := a.width - 2
	a.trend.resize(inner, 0)
	a.video.resize(inner, 0)

	var used int
	if a.mode == modeVideo {
		used = lipgloss.Height(a.video.formView()) + lipgloss.Height(a.video.resultView())
	} else {
		used = lipgloss.Height(a.trend.formView()) + lipgloss.Height(a.trend.resultView(inner))
	}
	// header, tabs, status, message line, two pane borders, table border and header
	tableHeight := a.height - used - 10
	a.trend.resize(inner, tableHeight)
	a.video.resize(inner, tableHeight)
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  trendscope")
	}

	if a.mode == modeHelp {
		return a.withStatusBar(a.renderHelp(), "f1/esc close  ctrl+c quit")
	}

	headerLeft := headerStyle.Render("trendscope")
	headerRight := headerDateStyle.Render(a.now().Format("2006-01-02"))
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	var form, result, table string
	tableActive := a.tableFocused()
	if a.mode == modeTrend {
		form = a.trend.formView()
		result = a.trend.resultView(a.width - 2)
		table = a.trend.table.View()
	} else {
		form = a.video.formView()
		result = a.video.resultView()
		table = a.video.table.View()
	}

	formPane := formPaneStyle.Width(a.width - 2).Render(form)
	pane := resultPaneStyle
	if tableActive {
		pane = resultPaneActiveStyle
	}
	tablePane := pane.Width(a.width - 2).Render(table)

	message := ""
	switch {
	case a.err != nil:
		message = errorStyle.Render(a.err.Error())
	case a.notice != "":
		message = noticeStyle.Render(a.notice)
	case a.running:
		message = a.spinner.View() + " fetching..."
	}

	sections := []string{header, renderTabs(a.mode, a.width), formPane}
	if result != "" {
		sections = append(sections, result)
	}
	sections = append(sections, tablePane, message)

	return a.withStatusBar(lipgloss.JoinVertical(lipgloss.Left, sections...), a.hints())
}

func (a *App) hints() string {
	if a.tableFocused() {
		if a.mode == modeVideo {
			return "j/k move  o open  ctrl+e export  tab form  ctrl+t switch  q quit"
		}
		return "j/k move  ctrl+e export  tab form  ctrl+t switch  q quit"
	}
	return "tab next  ctrl+r run  ctrl+e export  ctrl+t switch  f1 help"
}

func (a *App) withStatusBar(content, hints string) string {
	left := " " + a.mode.String()
	if a.mode == modeHelp {
		left = " " + a.lastMode.String()
	}
	bar := renderStatusBar(left, hints, a.width)
	lines := strings.Split(content, "\n")
	for len(lines) < a.height-1 {
		lines = append(lines, "")
	}
	if len(lines) >= a.height {
		lines = lines[:a.height-1]
	}
	lines = append(lines, bar)
	return strings.Join(lines, "\n")
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("trendscope")
	dim := helpDimStyle

	help := title + dim.Render(" · Keyboard Shortcuts") + "\n\n" +
		dim.Render("Forms") + "\n" +
		"  tab, shift+tab  Move between fields and the results table\n" +
		"  ←/→             Cycle unit or order\n" +
		"  enter, ctrl+r   Run the query\n\n" +
		dim.Render("Groups") + "\n" +
		"  one group per line: name: keyword, keyword\n\n" +
		dim.Render("Results") + "\n" +
		"  j/k, ↑/↓        Move through rows\n" +
		"  o, enter        Open video in browser\n" +
		"  ctrl+e          Export CSV (and PNG chart for trends)\n\n" +
		dim.Render("General") + "\n" +
		"  ctrl+t          Switch between trend and video search\n" +
		"  f1              Toggle this help\n" +
		"  ctrl+c          Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the TUI application.
func Run(opts RunOpts) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

package tui

import "github.com/matheuskafuri/trendscope/internal/pipeline"

type trendLoadedMsg struct {
	run pipeline.TrendRun
}

type videosLoadedMsg struct {
	run pipeline.VideoRun
}

type runErrMsg struct {
	err error
}

type exportDoneMsg struct {
	paths []string
}

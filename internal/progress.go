package internal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/rtzll/vidscope/internal/pipeline"
)

// UIManager is the interactive surface of the CLI: status lines on stdout
// and a step bar on stderr.
type UIManager interface {
	StepProgress() pipeline.Observer
	Verbose(format string, args ...any)
	Printf(format string, args ...any)
	Println(args ...any)
}

type StandardUIManager struct {
	out     io.Writer
	bars    io.Writer
	verbose bool
	quiet   bool
}

func NewUIManager(verbose, quiet bool) UIManager {
	return &StandardUIManager{
		out:     os.Stdout,
		bars:    os.Stderr,
		verbose: verbose,
		quiet:   quiet,
	}
}

// StepProgress returns an observer that draws one bar per pipeline run.
// Quiet and verbose runs get a silent bar; verbose output is the debug log.
func (ui *StandardUIManager) StepProgress() pipeline.Observer {
	return &stepProgress{newBar: ui.newStepBar}
}

func (ui *StandardUIManager) newStepBar(total int) *progressbar.ProgressBar {
	if ui.quiet || ui.verbose {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ui.bars),
		progressbar.OptionSetWidth(24),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: ".",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// Verbose prints only with --verbose.
func (ui *StandardUIManager) Verbose(format string, args ...any) {
	if ui.verbose && !ui.quiet {
		fmt.Fprintf(ui.out, format, args...)
	}
}

func (ui *StandardUIManager) Printf(format string, args ...any) {
	if !ui.quiet {
		fmt.Fprintf(ui.out, format, args...)
	}
}

func (ui *StandardUIManager) Println(args ...any) {
	if !ui.quiet {
		fmt.Fprintln(ui.out, args...)
	}
}

var stepLabels = map[string]string{
	"extract_metadata":   "Fetching metadata",
	"extract_transcript": "Fetching transcript",
	"analyze_content":    "Analyzing content",
	"save_to_database":   "Saving video",
	"load_video_data":    "Loading video",
	"generate_report":    "Drafting report",
	"save_report":        "Saving report",
	"finalize":           "Finishing",
}

var pipelineSteps = map[string]int{
	ingestPipelineName: 5,
	reportPipelineName: 4,
}

// stepProgress advances a bar as pipeline steps finish. The bar is dropped
// when a step routes anywhere but Continue.
type stepProgress struct {
	newBar func(total int) *progressbar.ProgressBar

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	done int
}

func (p *stepProgress) StepStarted(e pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = p.newBar(pipelineSteps[e.Pipeline])
		p.done = 0
	}
	label, ok := stepLabels[e.Step]
	if !ok {
		label = e.Step
	}
	p.bar.Describe(label)
}

func (p *stepProgress) StepFinished(e pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.done++
	_ = p.bar.Set(p.done)
	if e.Route != pipeline.Continue {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

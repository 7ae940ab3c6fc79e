package ui

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// BatchProgress renders one progress bar per file during multi-file
// ingestion runs.
type BatchProgress struct {
	progress *mpb.Progress
}

// NewBatchProgress creates a multi-bar progress container.
func NewBatchProgress() *BatchProgress {
	return &BatchProgress{
		progress: mpb.New(mpb.WithWidth(64)),
	}
}

// AddFile adds a bar tracking the pipeline steps for one file.
func (b *BatchProgress) AddFile(name string, steps int64) *mpb.Bar {
	return b.progress.AddBar(steps,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
				" done",
			),
		),
	)
}

// Wait blocks until every bar has completed rendering. When output is
// piped the bars cannot render and waiting would hang, so shut down
// instead.
func (b *BatchProgress) Wait() {
	if IsTerminal() {
		b.progress.Wait()
	} else {
		b.progress.Shutdown()
	}
}

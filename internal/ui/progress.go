package ui

import (
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressSink adapts a terminal progress bar to metrics.Sink so a CLI
// run can drive it without internal/pipeline or internal/restore knowing
// anything about terminals. Only BytesOut moves the bar; every other
// observation is discarded.
type ProgressSink struct {
	bar *progressbar.ProgressBar
}

// NewProgressSink creates a progress bar sized to the number of bytes
// the run expects to write, labeled for the operation in progress.
func NewProgressSink(totalBytes int64, label string) *ProgressSink {
	bar := progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetDescription(label),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	return &ProgressSink{bar: bar}
}

func (p *ProgressSink) Finish() error {
	return p.bar.Finish()
}

func (p *ProgressSink) ChunksIn(uint64)  {}
func (p *ProgressSink) ChunksOut(uint64) {}
func (p *ProgressSink) BytesIn(uint64)   {}

func (p *ProgressSink) BytesOut(n uint64) {
	_ = p.bar.Add64(int64(n))
}

func (p *ProgressSink) Errors(uint64)                                {}
func (p *ProgressSink) ChunkDuration(time.Duration)                  {}
func (p *ProgressSink) StageDuration(kind, algorithm string, d time.Duration) {}

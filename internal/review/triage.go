package review

import (
	"fmt"

	"github.com/dshills/reviewgate/internal/gitctx"
)

// Thresholds are line-count limits that select a review mode.
type Thresholds struct {
	// MaxFull is the largest diff reviewed in one pass.
	MaxFull int `json:"maxFull"`
	// ChunkCeiling is the largest single-file diff reviewed in chunked mode.
	ChunkCeiling int `json:"chunkCeiling"`
	// SkipCeiling is the largest diff reviewed at all.
	SkipCeiling int `json:"skipCeiling"`
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxFull: 1000, ChunkCeiling: 800, SkipCeiling: 2500}
}

// Validate checks that the limits are positive and ordered.
func (t Thresholds) Validate() error {
	if t.MaxFull <= 0 || t.ChunkCeiling <= 0 || t.SkipCeiling <= 0 {
		return fmt.Errorf("review thresholds must be positive (maxFull=%d chunkCeiling=%d skipCeiling=%d)",
			t.MaxFull, t.ChunkCeiling, t.SkipCeiling)
	}
	if t.SkipCeiling < t.MaxFull {
		return fmt.Errorf("skipCeiling (%d) must not be below maxFull (%d)", t.SkipCeiling, t.MaxFull)
	}
	return nil
}

// SkippedFile is a file left out of chunked review.
type SkippedFile struct {
	Path   string `json:"path"`
	Lines  int    `json:"lines"`
	Reason string `json:"reason"`
}

// Plan is the outcome of triage.
type Plan struct {
	Mode       Mode
	TotalLines int
	// Chunks are the files to review independently (chunked mode only).
	Chunks []gitctx.FileDiff
	// Oversize are files over the chunk ceiling (chunked mode only).
	Oversize []SkippedFile
	// Stats is the per-file summary (skip mode only).
	Stats []FileStat
}

// Triage chooses a review mode for d.
func Triage(d *gitctx.Diff, t Thresholds) Plan {
	total := d.TotalLines()
	p := Plan{TotalLines: total}
	switch {
	case total <= t.MaxFull:
		p.Mode = ModeFull
	case total <= t.SkipCeiling:
		p.Mode = ModeChunked
		for _, f := range d.Files {
			if n := f.Lines(); n > t.ChunkCeiling {
				p.Oversize = append(p.Oversize, SkippedFile{
					Path:   f.Path,
					Lines:  n,
					Reason: fmt.Sprintf("file diff is %d lines, over the %d-line chunk ceiling", n, t.ChunkCeiling),
				})
				continue
			}
			p.Chunks = append(p.Chunks, f)
		}
	default:
		p.Mode = ModeSkip
		p.Stats = Stats(d)
	}
	return p
}

// Stats returns a change-size summary for every file in d.
func Stats(d *gitctx.Diff) []FileStat {
	out := make([]FileStat, 0, len(d.Files))
	for _, f := range d.Files {
		out = append(out, FileStat{Path: f.Path, Added: f.Added, Removed: f.Removed, Lines: f.Lines()})
	}
	return out
}

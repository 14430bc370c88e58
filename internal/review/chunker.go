package review

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/providers"
)

// ChunkPrompt builds the prompt for one file.
type ChunkPrompt func(f gitctx.FileDiff) string

// RunChunked reviews each planned file in order, one reviewer run at a time,
// and returns one result per file. Oversize files come first as skipped
// entries. Errors are recorded on the result, not returned; the caller
// applies its error policy through AggregateChunks.
func RunChunked(ctx context.Context, inv *Invoker, r providers.Reviewer, plan Plan, prompt ChunkPrompt) []ChunkResult {
	results := make([]ChunkResult, 0, len(plan.Oversize)+len(plan.Chunks))
	for _, s := range plan.Oversize {
		inv.logger.Info("chunk skipped", zap.String("path", s.Path), zap.String("reason", s.Reason))
		results = append(results, ChunkResult{Path: s.Path, Lines: s.Lines, Status: FileSkipped, Reason: s.Reason})
	}
	for _, f := range plan.Chunks {
		res := ChunkResult{Path: f.Path, Lines: f.Lines(), Status: FileReviewed}
		if err := ctx.Err(); err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		v, err := inv.Invoke(ctx, r, Request{
			Prompt:      prompt(f),
			Kind:        KindCommit,
			Fingerprint: cache.ChunkFingerprint(r.Name(), f.Path, f.Raw),
			Path:        f.Path,
		})
		if err != nil {
			inv.logger.Warn("chunk review failed", zap.String("path", f.Path), zap.Error(err))
			res.Err = err
		} else {
			res.Verdict = &v
		}
		results = append(results, res)
	}
	return results
}

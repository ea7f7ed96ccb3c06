// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// maxParallelAnalyses bounds concurrent uploads of one message.
const maxParallelAnalyses = 4

// =============================================================================
// ATTACHMENT ANALYSIS
// =============================================================================

// analyze fills in the analysis of every file and photo of atts that has
// none yet. It never fails: an upload error yields a fallback analysis and
// a warning toast, and while not connected mock analyses are used. Only
// successful analyses are cached and marked analyzed, so a retry uploads
// a failed file again.
func (c *Controller) analyze(ctx context.Context, atts []model.Attachment, connected bool) []model.Attachment {
	out := make([]model.Attachment, len(atts))
	copy(out, atts)

	var todo []int
	for i, a := range out {
		if a.IsFileLike() && !a.Analyzed {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return out
	}

	ui, _ := c.view()
	c.log.Info("analyzing attachments", zap.Int("count", len(todo)), zap.Bool("connected", connected))

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAnalyses)
	for _, i := range todo {
		g.Go(func() error {
			a := out[i]
			ui.AnalysisProgress(a, AnalysisRunning, "")

			an, err := c.analyzeOne(gctx, a, connected)
			if err != nil {
				failed.Add(1)
				c.log.Warn("attachment analysis failed", zap.String("name", a.Name), zap.Error(err))
				ui.AnalysisProgress(a, AnalysisFailed, err.Error())
				out[i] = withFallback(a, transport.FallbackAnalysis(a, err))
				return nil
			}
			ui.AnalysisProgress(a, AnalysisComplete, util.Truncate(an.Analysis, 100))
			if a.ID != "" {
				c.cache.Set(a.ID, an)
			}
			out[i] = applyAnalysis(a, an)
			return nil
		})
	}
	_ = g.Wait()

	if failed.Load() > 0 {
		ui.Toast(ToastWarning, "Some files failed to analyze. AI will still respond.")
	}
	return out
}

func (c *Controller) analyzeOne(ctx context.Context, a model.Attachment, connected bool) (transport.Analysis, error) {
	if a.ID != "" {
		if an, ok := c.cache.Get(a.ID); ok {
			return an, nil
		}
	}
	if !connected {
		return transport.MockAnalysis(a), nil
	}
	if a.Path == "" {
		return transport.Analysis{}, fmt.Errorf("%s has no file to upload", a.Label())
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return transport.Analysis{}, fmt.Errorf("open %s: %w", a.Label(), err)
	}
	defer f.Close()

	up := transport.Upload{
		Name:        a.Name,
		MimeType:    a.MimeType,
		Description: a.Description,
		Size:        a.Size,
		Body:        f,
	}
	if a.IsImage() {
		return c.transport.AnalyzeImage(ctx, up)
	}
	return c.transport.AnalyzeDocument(ctx, up)
}

func applyAnalysis(a model.Attachment, an transport.Analysis) model.Attachment {
	a.Analyzed = true
	a.Analysis = an.Analysis
	a.AnalysisText = an.Text
	if an.MimeType != "" {
		a.MimeType = an.MimeType
	}
	return a
}

// withFallback carries an error analysis into this attempt's prompt only.
// The attachment stays unanalyzed.
func withFallback(a model.Attachment, an transport.Analysis) model.Attachment {
	a.Analyzed = false
	a.Analysis = an.Analysis
	a.AnalysisText = an.Text
	return a
}

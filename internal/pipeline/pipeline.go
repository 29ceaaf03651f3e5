// Package pipeline turns one final transcript segment into a translated,
// synthesized utterance for one listener language.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
)

type Pipeline struct {
	Translator  core.Translator
	Synthesizer core.Synthesizer
	// JobTimeout bounds one translate+synthesize pair.
	JobTimeout time.Duration
}

func New(tr core.Translator, sy core.Synthesizer, timeout time.Duration) *Pipeline {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Pipeline{Translator: tr, Synthesizer: sy, JobTimeout: timeout}
}

// Run translates the segment and synthesizes the result. Translation failure
// skips synthesis. Failures stay scoped to this (segment, language) pair; the
// caller decides what to do with the error.
func (p *Pipeline) Run(ctx context.Context, seg domain.TranscriptSegment, source, target domain.Lang) (domain.TranslatedUtterance, error) {
	ctx, cancel := context.WithTimeout(ctx, p.JobTimeout)
	defer cancel()

	text, err := p.Translator.Translate(ctx, seg.Text, source, target)
	if err != nil {
		return domain.TranslatedUtterance{}, fmt.Errorf("translate %q: %w", target, err)
	}

	audio, err := p.Synthesizer.Synthesize(ctx, text, target)
	if err != nil {
		return domain.TranslatedUtterance{}, fmt.Errorf("synthesize %q: %w", target, err)
	}

	return domain.TranslatedUtterance{
		Source:     seg,
		TargetLang: target,
		Text:       text,
		Audio:      audio,
	}, nil
}

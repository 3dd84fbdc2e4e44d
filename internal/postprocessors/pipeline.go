// Package postprocessors provides page processing between extraction and chunking.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PageProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PageProcessors and runs them in order.
type Pipeline struct {
	processors []driven.PageProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PageProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the pages through all processors in order.
// An empty pipeline returns the pages unchanged.
func (p *Pipeline) Process(ctx context.Context, pages []domain.PageText) ([]domain.PageText, error) {
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		pages, err = processor.Process(ctx, pages)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return pages, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PageProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}

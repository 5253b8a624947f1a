package recommend

import (
	"github.com/rmax-ai/bookgraph/pkg/gateway"
)

// Pipeline runs transform, then each filter in order, then the optional
// sorter. It keeps no state between calls.
type Pipeline struct {
	transformer Transformer
	filters     []Filter
	sorter      Sorter
}

// NewPipeline composes a pipeline. A nil transformer means
// DefaultTransformer; a nil sorter disables sorting.
func NewPipeline(t Transformer, filters []Filter, sorter Sorter) *Pipeline {
	if t == nil {
		t = DefaultTransformer{}
	}
	return &Pipeline{
		transformer: t,
		filters:     append([]Filter(nil), filters...),
		sorter:      sorter,
	}
}

// Process turns a raw batch into display-ready recommendations.
func (p *Pipeline) Process(raw []gateway.RawRecommendation) []Recommendation {
	results := p.transformer.Transform(raw)
	for _, f := range p.filters {
		results = f.Apply(results)
	}
	if p.sorter != nil {
		results = p.sorter.Sort(results)
	}
	if results == nil {
		return []Recommendation{}
	}
	return results
}

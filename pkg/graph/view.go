package graph

// Link kinds used by the render view.
const (
	LinkSimilarTheme = "similar-theme"
	LinkSimilarMood  = "similar-mood"
	LinkSharedMotif  = "shared-motif"
)

// ViewNode is a node prepared for display.
type ViewNode struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Kind       Kind       `json:"kind"`
	Properties Properties `json:"properties"`
}

// ViewLink is an edge prepared for display.
type ViewLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`
}

// View is the render-ready projection of a snapshot.
type View struct {
	Nodes []ViewNode `json:"nodes"`
	Links []ViewLink `json:"links"`
}

// Render builds the display view. Duplicate node ids render once and edges
// whose endpoints do not resolve are omitted.
func (g Graph) Render() View {
	v := View{
		Nodes: make([]ViewNode, 0, len(g.nodes)),
		Links: make([]ViewLink, 0, len(g.edges)),
	}
	for i, n := range g.nodes {
		if g.index[n.ID] != i {
			continue
		}
		v.Nodes = append(v.Nodes, ViewNode{
			ID:         n.ID,
			Label:      n.DisplayLabel(),
			Kind:       n.Kind(),
			Properties: n.Properties.Clone(),
		})
	}
	for _, e := range g.edges {
		if !g.edgeResolves(e) {
			continue
		}
		src := g.nodes[g.index[e.Source]].Kind()
		dst := g.nodes[g.index[e.Target]].Kind()
		v.Links = append(v.Links, ViewLink{
			Source: e.Source,
			Target: e.Target,
			Kind:   linkKind(src, dst),
			Weight: e.Weight,
		})
	}
	return v
}

func linkKind(a, b Kind) string {
	switch {
	case a == KindBook && b == KindBook:
		return LinkSimilarMood
	case a == KindTheme && b == KindTheme:
		return LinkSharedMotif
	default:
		return LinkSimilarTheme
	}
}

// Package refs discovers the chart and dataset references embedded in a
// dashboard's layout tree and metadata.
package refs

import "sort"

// NodeType is the type tag of a layout node.
type NodeType string

// Layout node types found in dashboard positions.
const (
	NodeRoot     NodeType = "ROOT"
	NodeGrid     NodeType = "GRID"
	NodeHeader   NodeType = "HEADER"
	NodeRow      NodeType = "ROW"
	NodeColumn   NodeType = "COLUMN"
	NodeTabs     NodeType = "TABS"
	NodeTab      NodeType = "TAB"
	NodeMarkdown NodeType = "MARKDOWN"
	NodeDivider  NodeType = "DIVIDER"
	NodeChart    NodeType = "CHART"
)

const chartIDField = "chartId"

// ChartRef is the chart reference carried by a CHART node.
type ChartRef struct {
	UUID     string
	OldID    int64
	HasOldID bool
}

// LayoutNode is one entry of a dashboard position mapping. Only CHART nodes
// carry a Chart reference.
type LayoutNode struct {
	Key      string
	Type     NodeType
	Children []string
	Chart    *ChartRef

	// raw is the decoded node, kept so that rewrites update it in place.
	raw map[string]any
}

// Meta returns the node's meta mapping, or nil.
func (n *LayoutNode) Meta() map[string]any {
	m, _ := n.raw["meta"].(map[string]any) //nolint:errcheck // type assertion.

	return m
}

// Layout is a parsed dashboard position, with nodes ordered by key.
type Layout struct {
	Nodes []*LayoutNode
}

// ParseLayout parses a decoded position mapping. Entries that are not node
// mappings (such as DASHBOARD_VERSION_KEY) or that lack a type are skipped.
func ParseLayout(position any) Layout {
	m, ok := position.(map[string]any)
	if !ok {
		return Layout{}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var layout Layout

	for _, k := range keys {
		raw, ok := m[k].(map[string]any)
		if !ok {
			continue
		}

		typ, ok := raw["type"].(string)
		if !ok || typ == "" {
			continue
		}

		node := &LayoutNode{Key: k, Type: NodeType(typ), raw: raw}

		if children, ok := raw["children"].([]any); ok {
			for _, c := range children {
				if s, ok := c.(string); ok {
					node.Children = append(node.Children, s)
				}
			}
		}

		if node.Type == NodeChart {
			node.Chart = parseChartRef(node.Meta())
		}

		layout.Nodes = append(layout.Nodes, node)
	}

	return layout
}

func parseChartRef(meta map[string]any) *ChartRef {
	if meta == nil {
		return nil
	}

	uuid, ok := meta["uuid"].(string)
	if !ok || uuid == "" {
		return nil
	}

	ref := &ChartRef{UUID: uuid}
	if id, ok := ToInt64(meta[chartIDField]); ok {
		ref.OldID = id
		ref.HasOldID = true
	}

	return ref
}

// Charts returns the CHART nodes that carry a reference.
func (l Layout) Charts() []*LayoutNode {
	var out []*LayoutNode

	for _, n := range l.Nodes {
		if n.Chart != nil {
			out = append(out, n)
		}
	}

	return out
}

// SetChart rewrites the chart id and UUID stored in a CHART node's meta.
func (n *LayoutNode) SetChart(id int64, uuid string) {
	meta := n.Meta()
	if meta == nil {
		return
	}

	meta[chartIDField] = id
	meta["uuid"] = uuid
	n.Chart = &ChartRef{UUID: uuid, OldID: id, HasOldID: true}
}

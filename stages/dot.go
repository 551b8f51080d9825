package stages

import (
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/teranos/threatbrief/errors"
)

// DOT renders the stage graph as a Graphviz digraph. Edges point from a
// dependency to the stage that reads it.
func DOT(name string, stages []Stage) (string, error) {
	g := gographviz.NewGraph()
	graphName := strconv.Quote(name)
	if err := g.SetName(graphName); err != nil {
		return "", errors.Wrap(err, "graph name")
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.Wrap(err, "graph direction")
	}
	if err := g.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return "", errors.Wrap(err, "graph attr")
	}

	for _, s := range stages {
		attrs := map[string]string{
			"shape": "box",
			"label": strconv.Quote(string(s.ID) + "\n" + s.Role.DisplayName()),
		}
		if err := g.AddNode(graphName, strconv.Quote(string(s.ID)), attrs); err != nil {
			return "", errors.Wrapf(err, "node %s", s.ID)
		}
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if err := g.AddEdge(strconv.Quote(string(dep)), strconv.Quote(string(s.ID)), true, nil); err != nil {
				return "", errors.Wrapf(err, "edge %s -> %s", dep, s.ID)
			}
		}
	}
	return g.String(), nil
}

// ParseGraph reads a dependency table from a DOT digraph whose nodes are role
// names. An edge a -> b means b reads a's output.
func ParseGraph(dot string) (DependencyTable, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, errors.MarkInput(errors.Wrap(err, "failed to parse DOT"))
	}
	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, errors.MarkInput(errors.Wrap(err, "failed to analyse DOT"))
	}
	if !g.Directed {
		return nil, errors.NewInputErrorf("dependency graph must be a digraph")
	}

	table := DependencyTable{}
	for _, e := range g.Edges.Edges {
		src, dst := unquote(e.Src), unquote(e.Dst)
		table[dst] = append(table[dst], src)
	}
	return table, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

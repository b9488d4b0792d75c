package resolver

import (
	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/dag"
	"github.com/matzehuels/cfboot/pkg/framework"
)

// Graph builds the requirement graph of the installed modules, the system
// module excluded. Node metadata carries "name", "version", "state" and
// "id".
func (r *Resolver) Graph() *dag.DAG {
	g := dag.New(nil)
	var mods []*framework.Module
	revs := map[string]*framework.Revision{}
	for _, m := range r.fw.Installed() {
		if m.IsSystem() {
			continue
		}
		rev, err := r.fw.Revision(m)
		if err != nil {
			continue
		}
		_ = g.AddNode(dag.Node{ID: m.Key(), Meta: dag.Metadata{
			"name":    m.Name,
			"version": m.Version.String(),
			"state":   r.fw.State(m).String(),
			"id":      m.ID,
		}})
		mods = append(mods, m)
		revs[m.Key()] = rev
	}

	for _, m := range mods {
		reqMods, reqPkgs, _ := bundle.SplitRequirements(revs[m.Key()].Requirements)
		for _, other := range mods {
			if other == m {
				continue
			}
			for _, mr := range reqMods {
				if mr.Matches(other.Name, other.Version) {
					_ = g.AddEdge(dag.Edge{From: m.Key(), To: other.Key(), Kind: "bundle"})
				}
			}
			for _, pr := range reqPkgs {
				if exportsFor(revs[other.Key()], pr) {
					_ = g.AddEdge(dag.Edge{From: m.Key(), To: other.Key(), Kind: "package"})
				}
			}
		}
	}
	return g
}

func exportsFor(rev *framework.Revision, pr bundle.PackageRequirement) bool {
	for _, e := range rev.Exports {
		if pr.Accepts(e) {
			return true
		}
	}
	return false
}

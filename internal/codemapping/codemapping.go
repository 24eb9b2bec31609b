// Package codemapping derives code mappings from normalized stack frames and
// repository file trees.
//
// A code mapping rewrites a stack trace path prefix (the stack root) into a
// repository path prefix (the source root). Path-based platforms match the
// frame's file path against repository files; module-based platforms turn
// the frame's package into a directory and also yield an in-app rule for
// the package root.
package codemapping

import (
	"strings"

	"codemap/internal/frames"
	"codemap/internal/platform"
	"codemap/internal/repotree"
	"codemap/internal/rules"
)

// CodeMapping maps a stack trace prefix to a repository prefix.
type CodeMapping struct {
	Repo       repotree.Repository
	StackRoot  string
	SourceRoot string
}

// Match is the repository file chosen for one frame and the mapping it
// yields.
type Match struct {
	Frame   frames.Info
	File    repotree.Entry
	Mapping CodeMapping
	// Rule is set for module-based platforms.
	Rule *rules.Rule
}

// Result is the outcome of matching a set of frames.
type Result struct {
	Mappings []CodeMapping
	Rules    rules.List
	Matches  []Match
	// Unmatched counts frames without a usable repository file.
	Unmatched int
	// Conflicts counts frames whose stack root was already mapped to a
	// different source root in this run.
	Conflicts int
}

// Derive matches every frame and de-duplicates the candidates. Mappings and
// rules keep the order of the first frame producing them; a stack root maps
// to the first source root found for it.
func Derive(cfg platform.Config, idx *repotree.Index, infos []frames.Info) Result {
	var res Result
	byStackRoot := make(map[string]CodeMapping)

	for _, info := range infos {
		var (
			m  Match
			ok bool
		)
		if cfg.Kind == platform.ModuleBased {
			m, ok = MatchModule(idx, info)
		} else {
			m, ok = MatchPath(idx, info)
		}
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matches = append(res.Matches, m)

		if prev, seen := byStackRoot[m.Mapping.StackRoot]; seen {
			if prev != m.Mapping {
				res.Conflicts++
			}
			continue
		}
		byStackRoot[m.Mapping.StackRoot] = m.Mapping
		res.Mappings = append(res.Mappings, m.Mapping)

		if m.Rule != nil && !res.Rules.HasPattern(m.Rule.Pattern) {
			res.Rules = append(res.Rules, *m.Rule)
		}
	}
	return res
}

// MatchPath picks the best repository file for a path-based frame and
// derives its roots.
func MatchPath(idx *repotree.Index, info frames.Info) (Match, bool) {
	var (
		best      repotree.Entry
		bestScore = -1
	)
	for _, e := range idx.Lookup(info.Basename()) {
		if !isPotentialMatch(e.Path, info.Path) {
			continue
		}
		score := commonSuffix(e.Path, info.Path)
		if bestScore < 0 || better(e, score, best, bestScore) {
			best, bestScore = e, score
		}
	}
	if bestScore < 0 {
		return Match{}, false
	}

	stackRoot, sourceRoot, ok := findRoots(info.Raw, best.Path)
	if !ok {
		return Match{}, false
	}
	return Match{
		Frame: info,
		File:  best,
		Mapping: CodeMapping{
			Repo:       best.Repo,
			StackRoot:  stackRoot,
			SourceRoot: sourceRoot,
		},
	}, true
}

// MatchModule picks the repository file ending with the frame's full
// package path and maps the package root onto the file's prefix.
func MatchModule(idx *repotree.Index, info frames.Info) (Match, bool) {
	if info.ModuleRoot == "" {
		return Match{}, false
	}
	var (
		best  repotree.Entry
		found bool
	)
	for _, e := range idx.Lookup(info.Basename()) {
		if e.Path != info.Path && !strings.HasSuffix(e.Path, "/"+info.Path) {
			continue
		}
		if !found || better(e, 0, best, 0) {
			best, found = e, true
		}
	}
	if !found {
		return Match{}, false
	}

	prefix := strings.TrimSuffix(best.Path, info.Path)
	rule := rules.ForModuleRoot(info.ModuleRoot)
	return Match{
		Frame: info,
		File:  best,
		Mapping: CodeMapping{
			Repo:       best.Repo,
			StackRoot:  info.ModuleRoot,
			SourceRoot: prefix + info.ModuleRoot,
		},
		Rule: &rule,
	}, true
}

// better orders candidates: longest common suffix, then repository name,
// then shortest path, then path.
func better(e repotree.Entry, score int, cur repotree.Entry, curScore int) bool {
	if score != curScore {
		return score > curScore
	}
	if e.Repo.Name != cur.Repo.Name {
		return e.Repo.Name < cur.Repo.Name
	}
	if len(e.Path) != len(cur.Path) {
		return len(e.Path) < len(cur.Path)
	}
	return e.Path < cur.Path
}

package project

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
)

// stageEmptyTree writes the canonical empty Tree, used as the initial
// commit's root.
func stageEmptyTree(tx *txn.Transaction) (codec.Hash, error) {
	h, data := objects.Encode(objects.Tree{})
	if err := tx.PutObject(h, data); err != nil {
		return codec.Hash{}, err
	}
	return h, nil
}

// matchPattern reports whether one shell-glob-style pattern (as used in
// include/ignore) matches p. Patterns are matched against the full
// slash-separated path, not just the basename, except a pattern with no
// slash also matches the basename at any depth (the common "*.pyc"
// case).
func matchPattern(pattern, p string) bool {
	if ok, err := path.Match(pattern, p); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := path.Match(pattern, path.Base(p)); err == nil && ok {
			return true
		}
	}
	return false
}

// isIgnored reports whether p is excluded by settings: ignore_patterns
// wins over include_patterns (an explicit ignore always excludes,
// matching the common VCS convention the teacher's config also follows).
func isIgnored(s objects.Settings, p string) bool {
	for _, pat := range s.IgnorePatterns {
		if matchPattern(pat, p) {
			return true
		}
	}
	if len(s.IncludePatterns) == 0 {
		return false
	}
	for _, pat := range s.IncludePatterns {
		if matchPattern(pat, p) {
			return false
		}
	}
	return true
}

// setManifestEntry returns a copy of m with path's entry replaced or
// appended, keeping entries sorted by path so the manifest's own
// encoding is deterministic.
func setManifestEntry(m objects.Manifest, entry objects.ManifestEntry) objects.Manifest {
	out := make([]objects.ManifestEntry, 0, len(m.Entries)+1)
	replaced := false
	for _, e := range m.Entries {
		if e.Path == entry.Path {
			out = append(out, entry)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return objects.Manifest{Entries: out}
}

// removeManifestEntry returns a copy of m with path's entry removed.
func removeManifestEntry(m objects.Manifest, p string) objects.Manifest {
	out := make([]objects.ManifestEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Path != p {
			out = append(out, e)
		}
	}
	return objects.Manifest{Entries: out}
}

func findManifestEntry(m objects.Manifest, p string) (objects.ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.Path == p {
			return e, true
		}
	}
	return objects.ManifestEntry{}, false
}

// buildTree turns a manifest into the Tree `commit` writes, honoring
// include/ignore (spec §4.6's "build a Tree from the manifest, honoring
// include/ignore") and skipping entries marked Ignored or untracked.
// Directory structure is reconstructed from each entry's path segments.
func buildTree(tx *txn.Transaction, m objects.Manifest, s objects.Settings) (codec.Hash, error) {
	flat := map[string]objects.TreeEntry{}
	for _, e := range m.Entries {
		if e.Ignored || isIgnored(s, e.Path) {
			continue
		}
		flat[e.Path] = objects.TreeEntry{Name: path.Base(e.Path), Kind: e.Kind, Target: e.Target, Props: e.Props}
	}
	return buildTreeFromFlat(tx, flat)
}

// buildTreeFromFlat reconstructs a Tree's directory structure from a
// flat path -> TreeEntry map, the shared tail of buildTree (from a
// manifest) and purge's path-filtered rebuild (from an existing Tree).
func buildTreeFromFlat(tx *txn.Transaction, flat map[string]objects.TreeEntry) (codec.Hash, error) {
	type node struct {
		entries map[string]objects.TreeEntry
		dirs    map[string]*node
	}
	newNode := func() *node { return &node{entries: map[string]objects.TreeEntry{}, dirs: map[string]*node{}} }
	root := newNode()

	for p, e := range flat {
		segs := strings.Split(filepath.ToSlash(p), "/")
		cur := root
		for _, seg := range segs[:len(segs)-1] {
			child, ok := cur.dirs[seg]
			if !ok {
				child = newNode()
				cur.dirs[seg] = child
			}
			cur = child
		}
		leaf := segs[len(segs)-1]
		e.Name = leaf
		cur.entries[leaf] = e
	}

	var encodeNode func(n *node) (codec.Hash, error)
	encodeNode = func(n *node) (codec.Hash, error) {
		names := make([]string, 0, len(n.entries)+len(n.dirs))
		for name := range n.entries {
			names = append(names, name)
		}
		for name := range n.dirs {
			names = append(names, name)
		}
		sort.Strings(names)

		entries := make([]objects.TreeEntry, 0, len(names))
		for _, name := range names {
			if e, ok := n.entries[name]; ok {
				entries = append(entries, e)
				continue
			}
			child := n.dirs[name]
			if len(child.entries) == 0 && len(child.dirs) == 0 {
				entries = append(entries, objects.TreeEntry{Name: name, Kind: objects.EntryEmptyDir, Target: objects.NoHash(), Props: objects.Props{}})
				continue
			}
			childHash, err := encodeNode(child)
			if err != nil {
				return codec.Hash{}, err
			}
			entries = append(entries, objects.TreeEntry{Name: name, Kind: objects.EntryDir, Target: objects.SomeHash(childHash), Props: objects.Props{}})
		}

		tree := objects.Tree{Entries: entries}
		h, data := objects.Encode(tree)
		if err := tx.PutObject(h, data); err != nil {
			return codec.Hash{}, err
		}
		return h, nil
	}

	return encodeNode(root)
}

// flattenTree walks a Tree recursively into path -> TreeEntry pairs,
// the inverse of buildTree's directory reconstruction, for diffing.
func flattenTree(tx *txn.Transaction, prefix string, h objects.OptHash) (map[string]objects.TreeEntry, error) {
	out := map[string]objects.TreeEntry{}
	if !h.Set {
		return out, nil
	}
	data, err := tx.Get(h.Hash)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	tree, err := objects.TreeFromValue(v)
	if err != nil {
		return nil, err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Kind == objects.EntryDir {
			sub, err := flattenTree(tx, p, e.Target)
			if err != nil {
				return nil, err
			}
			for k, v := range sub {
				out[k] = v
			}
			continue
		}
		out[p] = e
	}
	return out, nil
}

// diffTrees builds the ChangelogEntry ops between an old and new root
// tree (spec §4.6's "diff against current commit's tree").
func diffTrees(tx *txn.Transaction, oldRoot, newRoot objects.OptHash) ([]objects.ChangeOp, error) {
	oldFlat, err := flattenTree(tx, "", oldRoot)
	if err != nil {
		return nil, err
	}
	newFlat, err := flattenTree(tx, "", newRoot)
	if err != nil {
		return nil, err
	}

	paths := map[string]struct{}{}
	for p := range oldFlat {
		paths[p] = struct{}{}
	}
	for p := range newFlat {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var ops []objects.ChangeOp
	for _, p := range sorted {
		oldEntry, hadOld := oldFlat[p]
		newEntry, hasNew := newFlat[p]
		switch {
		case !hadOld && hasNew:
			ops = append(ops, objects.ChangeOp{Op: "added", Path: p, OldHash: objects.NoHash(), NewHash: newEntry.Target})
		case hadOld && !hasNew:
			ops = append(ops, objects.ChangeOp{Op: "removed", Path: p, OldHash: oldEntry.Target, NewHash: objects.NoHash()})
		case hadOld && hasNew:
			if !hashesEqual(oldEntry.Target, newEntry.Target) {
				ops = append(ops, objects.ChangeOp{Op: "modified", Path: p, OldHash: oldEntry.Target, NewHash: newEntry.Target})
			}
		}
	}
	return ops, nil
}

func hashesEqual(a, b objects.OptHash) bool {
	if a.Set != b.Set {
		return false
	}
	if !a.Set {
		return true
	}
	return a.Hash == b.Hash
}

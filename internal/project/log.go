package project

import (
	"context"
	"strconv"

	"github.com/kurobon/vex/internal/codec"
	"github.com/kurobon/vex/internal/objects"
	"github.com/kurobon/vex/internal/txn"
	"github.com/kurobon/vex/internal/verr"
)

func init() {
	Register(Entry{
		Name: "log",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "limit", Kind: KindSingle},
		}},
		Handler:  handleLog,
		ReadOnly: true,
	})
	Register(Entry{
		Name: "diff",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "commit", Kind: KindSingle},
		}},
		Handler:  handleDiff,
		ReadOnly: true,
	})
	Register(Entry{
		Name: "debug:cat",
		Schema: ArgSchema{Params: []ParamSpec{
			{Name: "hash", Kind: KindPositional, Required: true},
		}},
		Handler:  handleDebugCat,
		ReadOnly: true,
	})
}

// handleLog walks the active session's branch back along Commit.Parent,
// the log's sort key being TimestampApplied (H5: non-decreasing along
// the parent chain, so walking backward from head yields a
// newest-first ordering for free). Grounded on the teacher's `git log`
// porcelain shape, generalized to read a Commit chain instead of
// go-git's plumbing log iterator.
func handleLog(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	limit := -1
	if s, ok := args.Single("limit"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return HandlerOutput{}, verr.Usagef("project: --limit must be a non-negative integer")
		}
		limit = n
	}

	commit, head, err := sc.CurrentCommit(tx)
	if err != nil {
		return HandlerOutput{Result: Result{Text: "no commits yet"}}, nil
	}

	var lines string
	entries := []codec.Value{}
	cur := head
	c := commit
	for i := 0; limit < 0 || i < limit; i++ {
		if i > 0 {
			lines += "\n"
		}
		lines += cur.Hash.String()[:12] + " " + string(c.Kind_) + " " + c.Message
		entries = append(entries, codec.Obj(map[string]codec.Value{
			"hash":              codec.Str(cur.Hash.String()),
			"kind":              codec.Str(string(c.Kind_)),
			"message":           codec.Str(c.Message),
			"author_uuid":       codec.Str(c.AuthorUUID),
			"timestamp_applied": codec.Int(c.TimestampApplied),
			"timestamp_written": codec.Int(c.TimestampWritten),
		}))
		if !c.Parent.Set {
			break
		}
		data, err := tx.Get(c.Parent.Hash)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: read parent commit")
		}
		v, err := codec.Decode(data)
		if err != nil {
			return HandlerOutput{}, verr.CorruptObject(err, "project: decode parent commit")
		}
		next, err := objects.CommitFromValue(v)
		if err != nil {
			return HandlerOutput{}, err
		}
		cur = c.Parent
		c = next
	}
	if lines == "" {
		lines = "no commits yet"
	}
	return HandlerOutput{Result: Result{Text: lines, Data: codec.Arr(entries...)}}, nil
}

// handleDiff reports the ChangelogEntry ops attached to a commit (spec
// §3: "ChangelogEntry ... used for fast log and diff without tree
// walks"). The byte-level text diff itself is an out-of-scope external
// collaborator per spec §1; this surfaces the structural ops the core
// already tracks, which is as far as the core's responsibility goes.
func handleDiff(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	var commitHash codec.Hash
	if s, ok := args.Single("commit"); ok {
		h, err := codec.ParseHash(s)
		if err != nil {
			return HandlerOutput{}, verr.Usagef("project: malformed --commit hash: %v", err)
		}
		commitHash = h
	} else {
		_, head, err := sc.CurrentCommit(tx)
		if err != nil {
			return HandlerOutput{Result: Result{Text: "no commits yet"}}, nil
		}
		commitHash = head.Hash
	}

	data, err := tx.Get(commitHash)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: read commit for diff")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: decode commit for diff")
	}
	c, err := objects.CommitFromValue(v)
	if err != nil {
		return HandlerOutput{}, err
	}
	clData, err := tx.Get(c.ChangelogEntryHash)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: read changelog entry")
	}
	clVal, err := codec.Decode(clData)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: decode changelog entry")
	}
	cl, err := objects.ChangelogEntryFromValue(clVal)
	if err != nil {
		return HandlerOutput{}, err
	}

	var lines string
	entries := make([]codec.Value, len(cl.Ops))
	for i, op := range cl.Ops {
		if i > 0 {
			lines += "\n"
		}
		lines += op.Op + " " + op.Path
		entries[i] = op.ToValue()
	}
	if lines == "" {
		lines = "no changes"
	}
	return HandlerOutput{Result: Result{Text: lines, Data: codec.Arr(entries...)}}, nil
}

// handleDebugCat streams one CAS object's canonical encoding back out,
// for inspection (spec §5: "read-only streaming (log, debug:cat)").
// It decodes-then-re-encodes rather than returning the stored bytes
// verbatim so a raw-compressed blob (§4.2.1's zstd escape) still comes
// out as the same canonical form `get` would hand to any other caller.
func handleDebugCat(ctx context.Context, r *Repo, tx *txn.Transaction, sc sessionContext, args Args) (HandlerOutput, error) {
	s, _ := args.Positional(0)
	h, err := codec.ParseHash(s)
	if err != nil {
		return HandlerOutput{}, verr.Usagef("project: malformed hash: %v", err)
	}
	data, err := tx.Get(h)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: debug:cat read object")
	}
	v, err := codec.Decode(data)
	if err != nil {
		return HandlerOutput{}, verr.CorruptObject(err, "project: debug:cat decode object")
	}
	return HandlerOutput{Result: Result{Text: string(codec.Encode(v)), Data: v}}, nil
}

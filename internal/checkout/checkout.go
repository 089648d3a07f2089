// Package checkout implements CheckoutEngine (spec §4.7): reconciling a
// directory tree from one source-control tree to another, with
// Normal/Force/DryRun conflict policies.
//
// Grounded on spec §4.7's per-directory algorithm and conflict table
// directly; the conflict taxonomy names are carried over from
// Auriora-OneMount's internal/fs/conflict_resolution.go ConflictType /
// ConflictResolutionStrategy enums, re-keyed to the spec's own
// disposition names. Parallel fan-out over a directory's deferred
// actions uses golang.org/x/sync/errgroup, the same package
// rclone-rclone uses for its transfer-queue fan-out.
package checkout

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/auriora/vfsoverlay/internal/backingstore"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/inode"
	"github.com/auriora/vfsoverlay/internal/logging"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

// Mode selects the conflict-handling policy (spec §4.7).
type Mode int

const (
	Normal Mode = iota
	Force
	DryRun
)

// ConflictKind names the disposition assigned to a conflicting entry
// (spec §4.7's table), carried over from Auriora-OneMount's
// ConflictType enum vocabulary.
type ConflictKind string

const (
	ModifiedRemoved ConflictKind = "MODIFIED_REMOVED"
	MissingRemoved  ConflictKind = "MISSING_REMOVED"
	ModifiedModified ConflictKind = "MODIFIED_MODIFIED"
	UntrackedAdded  ConflictKind = "UNTRACKED_ADDED"
)

// Conflict is one reported disposition, with the path it occurred at.
type Conflict struct {
	Path string
	Kind ConflictKind
}

// Context accumulates conflicts and per-entry errors across an entire
// checkout run (spec §4.7 "Failure semantics": entry-level errors don't
// abort the overall checkout).
type Context struct {
	Mode Mode

	mu        sync.Mutex
	Conflicts []Conflict
	Errors    []error
}

func NewContext(mode Mode) *Context {
	return &Context{Mode: mode}
}

func (c *Context) reportConflict(path string, kind ConflictKind) {
	conflict := Conflict{Path: path, Kind: kind}
	logging.LogComplexObjectIfEnabled(logging.DebugLevel, "conflict", conflict, "checkout conflict recorded")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conflicts = append(c.Conflicts, conflict)
}

func (c *Context) reportError(err error) {
	if err == nil {
		return
	}
	logging.LogErrorAsWarn(err, "checkout entry failed, continuing with remaining entries")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors = append(c.Errors, err)
}

// Engine runs CheckoutEngine against a backing store. Each directory
// fans its subdirectory recursions out through its own errgroup; there
// is no shared, bounded worker pool.
type Engine struct {
	Store backingstore.Store
}

func New(store backingstore.Store) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) getTree(ctx context.Context, id ids.ObjectId) (backingstore.Tree, error) {
	if id.IsZero() {
		return backingstore.Tree{}, nil
	}
	return e.Store.GetTree(ctx, id)
}

func indexTree(t backingstore.Tree) map[string]backingstore.TreeEntry {
	m := make(map[string]backingstore.TreeEntry, len(t.Entries))
	for _, e := range t.Entries {
		m[e.Name] = e
	}
	return m
}

// Checkout transitions dir from fromTreeID to toTreeID under mode,
// recursing into subdirectories via the mount's worker pool.
func (e *Engine) Checkout(ctx context.Context, dir *inode.TreeInode, fromTreeID, toTreeID ids.ObjectId, cctx *Context) error {
	return e.checkoutDir(ctx, dir, dir.Name(), fromTreeID, toTreeID, cctx)
}

func (e *Engine) checkoutDir(ctx context.Context, dir *inode.TreeInode, path string, fromID, toID ids.ObjectId, cctx *Context) error {
	lc := logging.NewLogContext("checkout_dir").WithComponent("checkout").WithPath(path)
	logging.LogTraceWithContext(lc, "entering directory")

	// Step 1: short-circuit.
	if !dir.IsMaterialized() && dir.TreeObjectID().Equal(toID) {
		return nil
	}
	if cctx.Mode == DryRun && !dir.IsMaterialized() && dir.TreeObjectID().Equal(fromID) {
		return nil
	}

	fromTree, err := e.getTree(ctx, fromID)
	if err != nil {
		return err
	}
	toTree, err := e.getTree(ctx, toID)
	if err != nil {
		return err
	}
	fromByName := indexTree(fromTree)
	toByName := indexTree(toTree)

	current, err := dir.GetChildren(ctx)
	if err != nil {
		return err
	}
	currentByName := make(map[string]inode.ChildDescriptor, len(current))
	for _, c := range current {
		currentByName[c.Name] = c
	}

	names := make(map[string]struct{}, len(fromByName)+len(toByName)+len(currentByName))
	for n := range fromByName {
		names[n] = struct{}{}
	}
	for n := range toByName {
		names[n] = struct{}{}
	}
	for n := range currentByName {
		names[n] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	type deferredRecurse struct {
		name        string
		fromObjID   ids.ObjectId
		toObjID     ids.ObjectId
	}
	var recurses []deferredRecurse

	for _, name := range sorted {
		fromEntry, inFrom := fromByName[name]
		toEntry, inTo := toByName[name]
		live, liveExists := currentByName[name]
		childPath := path + "/" + name

		disp, kind, action := classify(fromEntry, inFrom, toEntry, inTo, live, liveExists, cctx.Mode)
		if kind != "" {
			cctx.reportConflict(childPath, kind)
		}
		switch disp {
		case dispositionSkip:
			continue
		case dispositionApply, dispositionReportAndApply:
			if cctx.Mode == DryRun {
				continue
			}
			if err := e.applyAction(ctx, dir, name, action, fromEntry, toEntry, live, liveExists); err != nil {
				cctx.reportError(err)
			}
			if (action == actionAdd || action == actionModify) && inTo && overlay.EntryMode(toEntry.Mode).IsDir() {
				recurses = append(recurses, deferredRecurse{name: name, fromObjID: nil, toObjID: toEntry.ObjectID})
			}
		case dispositionRecurse:
			recurses = append(recurses, deferredRecurse{name: name, fromObjID: fromEntry.ObjectID, toObjID: toEntry.ObjectID})
		}
	}

	// Step 6: run deferred recursions in parallel, one goroutine each.
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range recurses {
		r := r
		g.Go(func() error {
			child, err := dir.GetOrLoadChildTree(gctx, r.name)
			if err != nil {
				cctx.reportError(err)
				return nil
			}
			if err := e.checkoutDir(gctx, child, path+"/"+r.name, r.fromObjID, r.toObjID, cctx); err != nil {
				cctx.reportError(err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Step 8: dematerialization pass (skipped in DryRun, which never
	// mutates).
	if cctx.Mode == DryRun {
		return nil
	}
	toDescs := make([]inode.ChildDescriptor, 0, len(toTree.Entries))
	for _, te := range toTree.Entries {
		toDescs = append(toDescs, inode.ChildDescriptor{Name: te.Name, Mode: overlay.EntryMode(te.Mode), ObjectID: te.ObjectID})
	}
	if _, err := dir.TryDematerialize(ctx, toID, toDescs); err != nil {
		logging.Warn().Err(err).Str(logging.FieldPath, path).Msg("checkout dematerialization pass failed")
	}
	return nil
}

type disposition int

const (
	dispositionNone disposition = iota
	dispositionSkip
	dispositionApply
	dispositionReportAndApply
	dispositionRecurse
)

type actionKind int

const (
	actionNone actionKind = iota
	actionAdd
	actionRemove
	actionModify
)

// classify implements spec §4.7's conflict table: it decides, for one
// directory entry, whether to apply silently, skip with a reported
// conflict, apply while reporting (Force), or defer to a recursive
// subdirectory checkout.
func classify(fromEntry backingstore.TreeEntry, inFrom bool, toEntry backingstore.TreeEntry, inTo bool, live inode.ChildDescriptor, liveExists bool, mode Mode) (disposition, ConflictKind, actionKind) {
	var action actionKind
	switch {
	case inFrom && !inTo:
		action = actionRemove
	case !inFrom && inTo:
		action = actionAdd
	case inFrom && inTo && fromEntry.Mode == toEntry.Mode && fromEntry.ObjectID.Equal(toEntry.ObjectID):
		action = actionNone
	case inFrom && inTo:
		action = actionModify
	default:
		action = actionNone
	}
	if action == actionNone {
		return dispositionSkip, "", action
	}

	// Row 1: live state matches `from` exactly and is non-materialized —
	// nothing local has diverged, so the upstream change (or removal)
	// applies without conflict, for both remove and modify actions.
	liveMatchesFrom := action != actionAdd && liveExists && !live.ObjectID.IsZero() &&
		live.Mode == overlay.EntryMode(fromEntry.Mode) && live.ObjectID.Equal(fromEntry.ObjectID)
	if liveMatchesFrom {
		if action == actionModify && overlay.EntryMode(toEntry.Mode).IsDir() {
			return dispositionRecurse, "", action
		}
		return dispositionApply, "", action
	}

	switch action {
	case actionRemove:
		if !liveExists {
			if mode == Force {
				return dispositionReportAndApply, MissingRemoved, action
			}
			return dispositionSkip, MissingRemoved, action
		}
		materialized := live.ObjectID.IsZero()
		kind := ModifiedModified
		if materialized {
			kind = ModifiedRemoved
		}
		if mode == Force {
			return dispositionReportAndApply, kind, action
		}
		return dispositionSkip, kind, action

	case actionAdd:
		if !liveExists {
			if mode == DryRun {
				return dispositionSkip, "", action
			}
			if overlay.EntryMode(toEntry.Mode).IsDir() {
				return dispositionApply, "", action
			}
			return dispositionApply, "", action
		}
		sameAsTo := live.Mode == overlay.EntryMode(toEntry.Mode) && live.ObjectID.Equal(toEntry.ObjectID)
		if sameAsTo {
			return dispositionReportAndApply, UntrackedAdded, action
		}
		if mode == Force {
			return dispositionReportAndApply, UntrackedAdded, action
		}
		return dispositionSkip, UntrackedAdded, action

	case actionModify:
		if !liveExists {
			if mode == DryRun {
				return dispositionSkip, "", action
			}
			return dispositionApply, "", action
		}
		kind := ModifiedModified
		if mode == Force {
			return dispositionReportAndApply, kind, action
		}
		return dispositionSkip, kind, action
	}
	return dispositionSkip, "", action
}

func (e *Engine) applyAction(ctx context.Context, dir *inode.TreeInode, name string, action actionKind, fromEntry, toEntry backingstore.TreeEntry, live inode.ChildDescriptor, liveExists bool) error {
	switch action {
	case actionRemove:
		if !liveExists {
			return nil
		}
		return dir.RemoveCheckoutEntry(ctx, name, live.Mode.IsDir())
	case actionAdd, actionModify:
		if overlay.EntryMode(toEntry.Mode).IsDir() {
			return dir.ApplyCheckoutEntry(ctx, name, overlay.EntryMode(toEntry.Mode), toEntry.ObjectID)
		}
		return dir.ApplyCheckoutEntry(ctx, name, overlay.EntryMode(toEntry.Mode), toEntry.ObjectID)
	}
	return nil
}

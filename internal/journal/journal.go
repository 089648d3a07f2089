// Package journal defines the fire-and-forget notification contract the
// inode subsystem sends outward on every mutation (spec §6: "Interfaces
// consumed from the journal"), plus a no-op default and an in-memory
// recorder for tests.
package journal

import (
	"sync"

	"github.com/auriora/vfsoverlay/internal/ids"
)

// Journal receives fire-and-forget notifications of overlay mutations.
// Implementations must not block the caller meaningfully; a slow or
// unreachable journal consumer must never stall a filesystem operation.
type Journal interface {
	RecordCreated(parent ids.InodeId, name string, child ids.InodeId)
	RecordRemoved(parent ids.InodeId, name string, child ids.InodeId)
	RecordRenamed(srcParent ids.InodeId, srcName string, dstParent ids.InodeId, dstName string, child ids.InodeId)
	RecordReplaced(parent ids.InodeId, name string, oldChild, newChild ids.InodeId)
}

// NoOp discards every notification. Used when a mount has no external
// consumer wired up.
type NoOp struct{}

func (NoOp) RecordCreated(ids.InodeId, string, ids.InodeId)                      {}
func (NoOp) RecordRemoved(ids.InodeId, string, ids.InodeId)                      {}
func (NoOp) RecordRenamed(ids.InodeId, string, ids.InodeId, string, ids.InodeId) {}
func (NoOp) RecordReplaced(ids.InodeId, string, ids.InodeId, ids.InodeId)        {}

// Event is one recorded journal call, used by Recorder for test
// assertions.
type Event struct {
	Kind      string
	Parent    ids.InodeId
	Name      string
	Child     ids.InodeId
	DstParent ids.InodeId
	DstName   string
	OldChild  ids.InodeId
}

// Recorder is an in-memory Journal that appends every call to Events,
// for tests that need to assert on what was recorded without standing
// up a real external consumer.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
}

func (r *Recorder) RecordCreated(parent ids.InodeId, name string, child ids.InodeId) {
	r.append(Event{Kind: "created", Parent: parent, Name: name, Child: child})
}

func (r *Recorder) RecordRemoved(parent ids.InodeId, name string, child ids.InodeId) {
	r.append(Event{Kind: "removed", Parent: parent, Name: name, Child: child})
}

func (r *Recorder) RecordRenamed(srcParent ids.InodeId, srcName string, dstParent ids.InodeId, dstName string, child ids.InodeId) {
	r.append(Event{Kind: "renamed", Parent: srcParent, Name: srcName, DstParent: dstParent, DstName: dstName, Child: child})
}

func (r *Recorder) RecordReplaced(parent ids.InodeId, name string, oldChild, newChild ids.InodeId) {
	r.append(Event{Kind: "replaced", Parent: parent, Name: name, OldChild: oldChild, Child: newChild})
}

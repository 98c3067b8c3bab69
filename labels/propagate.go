package labels

import (
	"path/filepath"

	"github.com/orian/labeltree/models"
)

// pathFrame is one pending label of a propagation pass together with the
// resolved path of its parent.
type pathFrame struct {
	id   string
	base string
}

// propagatePath re-resolves the move path of every descendant of rootID,
// whose own path must already be up to date. Subfolder labels append their
// name to the parent path, inherit labels copy it, fixed labels keep their
// literal and their children resolve against it.
func (e *Engine) propagatePath(rootID string) {
	stack := e.childFrames(rootID, e.labels[rootID].Options.MoveCompletedPath)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		l := e.labels[f.id]
		opts := &l.Options

		switch opts.MoveCompletedMode {
		case models.MoveSubfolder:
			opts.MoveCompletedPath = filepath.Join(f.base, l.Name)
			e.applyMovePath(f.id)
			pathUpdates.Inc()
		case models.MoveInherit:
			opts.MoveCompletedPath = f.base
			e.applyMovePath(f.id)
			pathUpdates.Inc()
		}

		stack = append(stack, e.childFrames(f.id, opts.MoveCompletedPath)...)
	}
}

// childFrames returns frames for the children of id, ordered so that the
// lowest id is popped first.
func (e *Engine) childFrames(id, base string) []pathFrame {
	children := e.sortedChildren(id)
	frames := make([]pathFrame, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		frames = append(frames, pathFrame{id: children[i], base: base})
	}
	return frames
}

// resolveOwnPath recomputes the path of a non-fixed label from its parent.
// Reports whether the path changed.
func (e *Engine) resolveOwnPath(id string) bool {
	l := e.labels[id]
	var path string
	switch l.Options.MoveCompletedMode {
	case models.MoveSubfolder:
		path = filepath.Join(e.parentPath(id), l.Name)
	case models.MoveInherit:
		path = e.parentPath(id)
	default:
		return false
	}
	if path == l.Options.MoveCompletedPath {
		return false
	}
	l.Options.MoveCompletedPath = path
	return true
}

// applyMovePath pushes the label's move path to its items, if the label
// moves items on completion at all.
func (e *Engine) applyMovePath(id string) {
	opts := e.labels[id].Options
	if !opts.MovesOnComplete() {
		return
	}
	for _, itemID := range sortedKeys(e.index[id].items) {
		e.host.SetMovePath(itemID, opts.MoveCompletedPath)
	}
}

// subtreeMoveCompleted requests moves for the items of id and of every
// descendant.
func (e *Engine) subtreeMoveCompleted(id string) {
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e.doMoveCompleted(cur, sortedKeys(e.index[cur].items))

		children := e.sortedChildren(cur)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// doMoveCompleted asks the mover to relocate items. With an empty labelID
// the items were just unassigned and go back to the default location;
// otherwise the label must move on completion and move_on_changes must be
// on. A missing mover makes this a no-op.
func (e *Engine) doMoveCompleted(labelID string, itemIDs []string) {
	if e.mover == nil || len(itemIDs) == 0 {
		return
	}
	if labelID != "" {
		l := e.labels[labelID]
		if l == nil || !e.prefs.Options.MoveOnChanges || !l.Options.MovesOnComplete() {
			return
		}
	}
	e.mover.RequestMove(itemIDs)
}

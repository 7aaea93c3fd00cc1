// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package differ

import "fmt"

type viewState int

const (
	viewState_Mounted  viewState = iota // attached before the list started (or never mentioned)
	viewState_Detached                  // created, or removed, and not attached anywhere
	viewState_Attached
	viewState_Deleted
)

type viewInfo struct {
	state  viewState
	parent int64 // meaningful while attached; tracked once the list attaches or touches the view
	known  bool  // parent is known
}

// CheckWellFormed verifies the ordering rules every mutation list must obey:
// a view is Created before it is inserted, updated or used as a parent; it is
// Removed before it is Deleted; it is not referenced after its Delete unless
// it is Created again; and it is only removed from or updated under the
// parent it is attached to.
func CheckWellFormed(list []Mutation) error {
	views := make(map[int64]*viewInfo)
	for pos, m := range list {
		tag := m.ChildTag()
		if tag == RootParentTag {
			return fmt.Errorf("mutation %d %s targets the root parent", pos, m)
		}
		if m.HasParent() && m.ParentView.Tag != RootParentTag {
			if parent, ok := views[m.ParentView.Tag]; ok && parent.state == viewState_Deleted {
				return fmt.Errorf("mutation %d %s uses deleted parent tag=%d", pos, m, m.ParentView.Tag)
			}
		}
		info, seen := views[tag]
		if !seen {
			info = &viewInfo{state: viewState_Mounted}
			views[tag] = info
		}
		switch m.Type {
		case MutationType_Create:
			if seen && info.state != viewState_Deleted {
				return fmt.Errorf("mutation %d %s creates live tag=%d", pos, m, tag)
			}
			info.state = viewState_Detached
			info.known = false
		case MutationType_Insert:
			if info.state != viewState_Detached {
				return fmt.Errorf("mutation %d %s inserts tag=%d that is not detached", pos, m, tag)
			}
			info.state = viewState_Attached
			info.parent, info.known = m.ParentView.Tag, true
		case MutationType_Remove:
			if info.state != viewState_Mounted && info.state != viewState_Attached {
				return fmt.Errorf("mutation %d %s removes tag=%d that is not attached", pos, m, tag)
			}
			if info.known && info.parent != m.ParentView.Tag {
				return fmt.Errorf("mutation %d %s removes tag=%d from tag=%d but it is attached to tag=%d", pos, m, tag, m.ParentView.Tag, info.parent)
			}
			info.state = viewState_Detached
			info.known = false
		case MutationType_Delete:
			if info.state != viewState_Detached || !seen {
				return fmt.Errorf("mutation %d %s deletes tag=%d before removing it", pos, m, tag)
			}
			info.state = viewState_Deleted
		case MutationType_Update:
			if info.state != viewState_Mounted && info.state != viewState_Attached {
				return fmt.Errorf("mutation %d %s updates tag=%d that is not attached", pos, m, tag)
			}
			if info.known && info.parent != m.ParentView.Tag {
				return fmt.Errorf("mutation %d %s updates tag=%d under tag=%d but it is attached to tag=%d", pos, m, tag, m.ParentView.Tag, info.parent)
			}
			if m.OldChildView.Tag != tag {
				return fmt.Errorf("mutation %d %s changes tag %d -> %d", pos, m, m.OldChildView.Tag, tag)
			}
			info.parent, info.known = m.ParentView.Tag, true
		default:
			return fmt.Errorf("mutation %d has invalid type %d", pos, int(m.Type))
		}
	}
	return nil
}

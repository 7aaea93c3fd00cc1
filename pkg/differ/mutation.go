// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"fmt"
	"strings"
)

type MutationType int

const (
	MutationType_Create MutationType = iota + 1
	MutationType_Delete
	MutationType_Insert
	MutationType_Remove
	MutationType_Update
)

func (mt MutationType) String() string {
	switch mt {
	case MutationType_Create:
		return "Create"
	case MutationType_Delete:
		return "Delete"
	case MutationType_Insert:
		return "Insert"
	case MutationType_Remove:
		return "Remove"
	case MutationType_Update:
		return "Update"
	}
	return fmt.Sprintf("MutationType(%d)", int(mt))
}

// Mutation is one instruction for the mounting layer. Index is the child's
// position in the parent's mounted child list at the moment the mutation is
// applied. For Update, an Index different from the child's current position
// means the child is also moved there (remove, then insert at Index).
type Mutation struct {
	Type         MutationType `json:"type"`
	ParentView   ShadowView   `json:"parentview"`
	OldChildView ShadowView   `json:"oldchildview"`
	NewChildView ShadowView   `json:"newchildview"`
	Index        int          `json:"index"`
}

func CreateMutation(view ShadowView) Mutation {
	return Mutation{Type: MutationType_Create, NewChildView: view, Index: -1}
}

func DeleteMutation(view ShadowView) Mutation {
	return Mutation{Type: MutationType_Delete, OldChildView: view, Index: -1}
}

func InsertMutation(parent ShadowView, child ShadowView, index int) Mutation {
	return Mutation{Type: MutationType_Insert, ParentView: parent, NewChildView: child, Index: index}
}

func RemoveMutation(parent ShadowView, child ShadowView, index int) Mutation {
	return Mutation{Type: MutationType_Remove, ParentView: parent, OldChildView: child, Index: index}
}

func UpdateMutation(parent ShadowView, oldChild ShadowView, newChild ShadowView, index int) Mutation {
	return Mutation{Type: MutationType_Update, ParentView: parent, OldChildView: oldChild, NewChildView: newChild, Index: index}
}

// ChildTag is the tag of the view the mutation is about.
func (m Mutation) ChildTag() int64 {
	switch m.Type {
	case MutationType_Delete, MutationType_Remove:
		return m.OldChildView.Tag
	}
	return m.NewChildView.Tag
}

func (m Mutation) HasParent() bool {
	switch m.Type {
	case MutationType_Insert, MutationType_Remove, MutationType_Update:
		return true
	}
	return false
}

func (m Mutation) String() string {
	switch m.Type {
	case MutationType_Create:
		return fmt.Sprintf("Create(%s)", m.NewChildView)
	case MutationType_Delete:
		return fmt.Sprintf("Delete(%s)", m.OldChildView)
	case MutationType_Insert:
		return fmt.Sprintf("Insert(%s, %s, %d)", m.ParentView, m.NewChildView, m.Index)
	case MutationType_Remove:
		return fmt.Sprintf("Remove(%s, %s, %d)", m.ParentView, m.OldChildView, m.Index)
	case MutationType_Update:
		return fmt.Sprintf("Update(%s, %s, %d)", m.ParentView, m.NewChildView, m.Index)
	}
	return m.Type.String()
}

func FormatList(list []Mutation) string {
	var sb strings.Builder
	for _, m := range list {
		sb.WriteString(m.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

type MutationCounts struct {
	Create int `json:"create"`
	Delete int `json:"delete"`
	Insert int `json:"insert"`
	Remove int `json:"remove"`
	Update int `json:"update"`
}

func (mc MutationCounts) Total() int {
	return mc.Create + mc.Delete + mc.Insert + mc.Remove + mc.Update
}

func Summarize(list []Mutation) MutationCounts {
	var mc MutationCounts
	for _, m := range list {
		switch m.Type {
		case MutationType_Create:
			mc.Create++
		case MutationType_Delete:
			mc.Delete++
		case MutationType_Insert:
			mc.Insert++
		case MutationType_Remove:
			mc.Remove++
		case MutationType_Update:
			mc.Update++
		}
	}
	return mc
}

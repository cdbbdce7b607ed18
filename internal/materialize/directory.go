package materialize

import (
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/ir"
	"github.com/roach88/cellsync/internal/table"
)

func (a *applier) actorProfileSet(p *event.ActorProfileSetPayload) {
	a.t.Actors[p.ID] = &table.Actor{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Type:        p.Type,
	}
	a.touch(table.Actors)
}

func (a *applier) presenceSet(p *event.PresenceSetPayload) {
	a.t.Presence[p.UserID] = &table.Presence{
		UserID:    p.UserID,
		CellID:    p.CellID,
		UpdatedAt: a.ts,
	}
	a.touch(table.Presences)
}

func (a *applier) presenceCleared(p *event.PresenceClearedPayload) {
	if _, ok := a.t.Presence[p.UserID]; !ok {
		return
	}
	delete(a.t.Presence, p.UserID)
	a.touch(table.Presences)
}

func (a *applier) tagCreated(p *event.TagCreatedPayload) {
	if _, exists := a.t.Tags[p.ID]; exists {
		a.violate(p.ID, CodeDuplicateTag, "tag %s already exists", p.ID)
		return
	}
	for _, tag := range a.t.Tags {
		if tag.Name == p.Name {
			a.violate(p.ID, CodeDuplicateTagName, "tag name %q is taken by %s", p.Name, tag.ID)
			return
		}
	}
	a.t.Tags[p.ID] = &table.Tag{ID: p.ID, Name: p.Name, Color: p.Color}
	a.touch(table.Tags)
}

func (a *applier) tagDeleted(p *event.TagDeletedPayload) {
	if _, ok := a.t.Tags[p.ID]; !ok {
		return
	}
	delete(a.t.Tags, p.ID)
	a.touch(table.Tags)
	for k, as := range a.t.TagAssignments {
		if as.TagID == p.ID {
			delete(a.t.TagAssignments, k)
			a.touch(table.TagAssignments)
		}
	}
}

func (a *applier) tagAssigned(p *event.TagAssignedPayload) {
	if _, ok := a.t.Tags[p.TagID]; !ok {
		return
	}
	key := table.AssignmentKey(p.NotebookID, p.TagID)
	if _, exists := a.t.TagAssignments[key]; exists {
		return
	}
	a.t.TagAssignments[key] = &table.TagAssignment{NotebookID: p.NotebookID, TagID: p.TagID}
	a.touch(table.TagAssignments)
}

func (a *applier) tagUnassigned(p *event.TagUnassignedPayload) {
	key := table.AssignmentKey(p.NotebookID, p.TagID)
	if _, ok := a.t.TagAssignments[key]; !ok {
		return
	}
	delete(a.t.TagAssignments, key)
	a.touch(table.TagAssignments)
}

func (a *applier) uiStateSet(p *event.UIStateSetPayload) {
	value := p.Value
	if value == nil {
		value = ir.Null{}
	}
	a.t.UIState[p.Key] = &table.UIState{Name: p.Key, Value: value, UpdatedAt: a.ts}
	a.touch(table.UIStates)
}

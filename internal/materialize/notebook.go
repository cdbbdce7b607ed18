package materialize

import (
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/ir"
	"github.com/roach88/cellsync/internal/table"
)

func (a *applier) notebookInitialized(p *event.NotebookInitializedPayload) {
	if existing := a.t.Notebook(); existing != nil {
		a.violate(p.ID, CodeDuplicateNotebook, "store already holds notebook %s", existing.ID)
		return
	}
	a.t.Notebooks[p.ID] = &table.Notebook{
		ID:           p.ID,
		Title:        p.Title,
		OwnerID:      p.OwnerID,
		CreatedAt:    a.ts,
		LastModified: a.ts,
	}
	a.touch(table.Notebooks)
}

func (a *applier) notebookTitleChanged(p *event.NotebookTitleChangedPayload) {
	nb := a.t.Notebook()
	if nb == nil {
		return
	}
	nb.Title = strPtr(p.Title)
	a.touch(table.Notebooks)
}

func (a *applier) cellCreated(p *event.CellCreatedPayload) {
	if _, exists := a.t.Cells[p.ID]; exists {
		a.violate(p.ID, CodeDuplicateCell, "cell %s already exists", p.ID)
		return
	}
	c := &table.Cell{
		ID:             p.ID,
		CellType:       p.CellType,
		Position:       p.Position,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      a.ts,
		ExecutionState: table.StateIdle,
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
	if nb := a.t.Notebook(); nb != nil {
		c.NotebookID = nb.ID
	}
	a.t.Cells[p.ID] = c
	a.touchCell(c)
}

func (a *applier) cellSourceChanged(p *event.CellSourceChangedPayload) {
	if c, ok := a.liveCell(p.ID); ok {
		c.Source = p.Source
		a.touchCell(c)
	}
}

func (a *applier) cellTypeChanged(p *event.CellTypeChangedPayload) {
	if c, ok := a.liveCell(p.ID); ok {
		c.CellType = p.CellType
		a.touchCell(c)
	}
}

func (a *applier) cellMoved(p *event.CellMovedPayload) {
	if c, ok := a.liveCell(p.ID); ok {
		c.Position = p.Position
		a.touchCell(c)
	}
}

// cellDeleted is a soft delete: outputs and queue entries stay for audit.
func (a *applier) cellDeleted(p *event.CellDeletedPayload) {
	c, ok := a.liveCell(p.ID)
	if !ok {
		return
	}
	c.DeletedAt = timePtr(a.ts)
	if p.DeletedBy != nil {
		c.DeletedBy = strPtr(*p.DeletedBy)
	} else {
		c.DeletedBy = strPtr(a.ev.ActorID)
	}
	a.touchCell(c)
}

func (a *applier) outputAdded(p *event.CellOutputAddedPayload) {
	c, ok := a.liveCell(p.CellID)
	if !ok {
		return
	}
	if _, exists := a.t.Outputs[p.ID]; exists {
		a.violate(p.ID, CodeDuplicateOutput, "output %s already exists", p.ID)
		return
	}
	if c.PendingClear {
		a.purgeOutputs(c.ID)
		c.PendingClear = false
		a.touchCell(c)
	}

	o := &table.Output{
		ID:             p.ID,
		CellID:         p.CellID,
		OutputType:     p.OutputType,
		Data:           p.Data.Clone(),
		CreatedAt:      a.ts,
		DisplayID:      p.DisplayID,
		ExecutionCount: p.ExecutionCount,
	}
	if o.Data == nil {
		o.Data = ir.Object{}
	}
	if p.Position != nil {
		o.Position = *p.Position
	} else {
		o.Position = a.nextOutputPosition(c.ID)
	}
	a.t.Outputs[o.ID] = o
	a.touch(table.Outputs)
}

func (a *applier) nextOutputPosition(cellID string) int64 {
	existing := a.t.OutputsOf(cellID)
	if len(existing) == 0 {
		return 0
	}
	return existing[len(existing)-1].Position + 1
}

func (a *applier) purgeOutputs(cellID string) {
	for _, o := range a.t.OutputsOf(cellID) {
		delete(a.t.Outputs, o.ID)
		a.touch(table.Outputs)
	}
}

func (a *applier) outputsCleared(p *event.CellOutputsClearedPayload) {
	c, ok := a.liveCell(p.CellID)
	if !ok {
		return
	}
	if p.Wait {
		if !c.PendingClear {
			c.PendingClear = true
			a.touchCell(c)
		}
		return
	}
	a.purgeOutputs(c.ID)
	if c.PendingClear {
		c.PendingClear = false
		a.touchCell(c)
	}
}

func (a *applier) displayDataUpdated(p *event.DisplayDataUpdatedPayload) {
	for _, o := range a.t.Outputs {
		if o.DisplayID != nil && *o.DisplayID == p.DisplayID {
			o.Data = p.Data.Clone()
			if o.Data == nil {
				o.Data = ir.Object{}
			}
			a.touch(table.Outputs)
		}
	}
}

func (a *applier) terminalOutputAppended(p *event.TerminalOutputAppendedPayload) {
	o, ok := a.t.Outputs[p.OutputID]
	if !ok {
		return
	}
	if o.OutputType != "stream" && o.OutputType != "terminal" {
		a.violate(o.ID, CodeOutputNotAppendable, "output %s is %s", o.ID, o.OutputType)
		return
	}
	var text string
	if s, ok := o.Data["text"].(ir.String); ok {
		text = string(s)
	}
	data := o.Data.Clone()
	if data == nil {
		data = ir.Object{}
	}
	data["text"] = ir.String(text + p.Text)
	o.Data = data
	a.touch(table.Outputs)
}

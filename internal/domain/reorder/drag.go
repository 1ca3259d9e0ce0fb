package reorder

import "github.com/okian/pickem/internal/domain/model"

// DragSession follows one pointer gesture: Start, any number of Over, then
// Drop or End. It holds no list; the caller passes the current list to Drop.
type DragSession struct {
	dragged string
	over    int
	active  bool
}

// Start begins dragging id, replacing any gesture in progress.
func (d *DragSession) Start(id string) {
	d.dragged = id
	d.over = -1
	d.active = id != ""
}

// Over records the index currently hovered. Ignored when nothing is dragged.
func (d *DragSession) Over(index int) {
	if d.active {
		d.over = index
	}
}

// Drop finishes the gesture at index. With no gesture in progress the list is
// returned unchanged. The session always ends.
func (d *DragSession) Drop(items []model.Item, index int) ([]model.Item, bool) {
	if !d.active {
		return items, false
	}
	id := d.dragged
	d.End()
	next := Reorder(items, id, index)
	return next, Changed(items, next)
}

// End abandons the gesture without touching any list.
func (d *DragSession) End() {
	d.dragged = ""
	d.over = -1
	d.active = false
}

// Active reports whether a gesture is in progress.
func (d *DragSession) Active() bool { return d.active }

// Dragged returns the id being dragged, or "".
func (d *DragSession) Dragged() string { return d.dragged }

// OverIndex returns the hovered index, or -1.
func (d *DragSession) OverIndex() int {
	if !d.active {
		return -1
	}
	return d.over
}

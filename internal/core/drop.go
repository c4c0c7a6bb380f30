package core

// DropKind describes where a dragged batch lands relative to its target.
type DropKind int

const (
	DropAfter DropKind = iota
	DropBefore
	DropEnd
)

// DropTarget is the drop point of a drag gesture.
type DropTarget struct {
	Kind   DropKind
	ItemID int64
}

// DropAfterItem drops immediately after the given item.
func DropAfterItem(id int64) DropTarget { return DropTarget{Kind: DropAfter, ItemID: id} }

// DropBeforeItem drops immediately before the given item.
func DropBeforeItem(id int64) DropTarget { return DropTarget{Kind: DropBefore, ItemID: id} }

// DropAtEnd drops after the last item of the queue.
func DropAtEnd() DropTarget { return DropTarget{Kind: DropEnd} }

package models

// EventOp is the kind of document change.
type EventOp int

const (
	// EventModify means the document was created or its content changed.
	EventModify EventOp = iota
	// EventDelete means the document is gone.
	EventDelete
	// EventRename means the document moved from OldPath to Path.
	EventRename
)

func (op EventOp) String() string {
	switch op {
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// DocumentEvent is a change notification for one document.
// Paths are normalized vault-relative paths.
type DocumentEvent struct {
	Op      EventOp
	Path    string
	OldPath string
}

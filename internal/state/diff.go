package state

import "fmt"

// Diff ops. Every network-visible mutation is one of these applied to a
// dotted path into the GameState document.
const (
	OpSet    = "set"
	OpAppend = "append"
	OpRemove = "remove"
)

// Diff is the atomic unit of change.
type Diff struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func Set(path string, value any) Diff    { return Diff{Op: OpSet, Path: path, Value: value} }
func Append(path string, value any) Diff { return Diff{Op: OpAppend, Path: path, Value: value} }
func Remove(path string) Diff            { return Diff{Op: OpRemove, Path: path} }

// DiffBatch is the replication unit: the ordered diffs of one executed
// action, tagged with a monotonic sequence number so re-delivery is a no-op.
type DiffBatch struct {
	Seq   uint64 `json:"seq"`
	Diffs []Diff `json:"diffs"`
}

// StateError signals an invalid diff path or value. It marks a
// validate/execute contract violation and is treated as a defect, not
// handled gracefully.
type StateError struct {
	Path string
	Op   string
	Msg  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s %q: %s", e.Op, e.Path, e.Msg)
}

func pathErr(op, path, msg string) *StateError {
	return &StateError{Path: path, Op: op, Msg: msg}
}

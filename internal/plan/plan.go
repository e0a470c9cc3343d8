package plan

import "github.com/shelf-sh/shelf/internal/digest"

// OpType discriminates plan operations.
type OpType string

const (
	// OpPut uploads new or changed content for a path.
	OpPut OpType = "put"
	// OpDelete removes a path that no longer exists locally.
	OpDelete OpType = "delete"
)

// Op is a single planned operation.
type Op struct {
	Type   OpType        `json:"type"`
	Path   string        `json:"path"`
	Digest digest.Digest `json:"digest,omitempty"`
	Size   int64         `json:"size,omitempty"`
}

// Plan is the ordered operation set for one sync invocation. Puts always
// precede Deletes so a replaced path never transiently disappears to a
// concurrent reader. Plans are ephemeral and never persisted.
type Plan struct {
	Puts    []Op `json:"puts"`
	Deletes []Op `json:"deletes"`
}

// Ops returns all operations in execution order.
func (p *Plan) Ops() []Op {
	ops := make([]Op, 0, len(p.Puts)+len(p.Deletes))
	ops = append(ops, p.Puts...)
	ops = append(ops, p.Deletes...)
	return ops
}

// Len returns the total operation count.
func (p *Plan) Len() int {
	return len(p.Puts) + len(p.Deletes)
}

// Empty reports whether the plan has no work, i.e. the trees already
// converged.
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// TransferSize returns the total bytes the plan will upload.
func (p *Plan) TransferSize() int64 {
	var total int64
	for _, op := range p.Puts {
		total += op.Size
	}
	return total
}

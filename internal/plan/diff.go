package plan

import "github.com/shelf-sh/shelf/internal/digest"

// Diff computes the plan that reconciles remote with local. Both manifests
// are treated as sorted by path; unsorted input is sorted on entry.
//
// The walk is a linear two-pointer merge:
//   - path only local        -> Put
//   - both, digests differ   -> Put
//   - both, digests equal    -> nothing (transfer avoidance)
//   - path only remote       -> Delete
//
// Local is the source of truth: an empty local manifest against a
// non-empty remote produces a plan that deletes the entire remote subtree.
// Callers exposing this to users must treat that as a destructive action.
func Diff(remote, local Manifest) *Plan {
	if !IsSorted(remote) {
		remote = append(Manifest(nil), remote...)
		SortManifest(remote)
	}
	if !IsSorted(local) {
		local = append(Manifest(nil), local...)
		SortManifest(local)
	}

	p := &Plan{}
	i, j := 0, 0
	for i < len(remote) && j < len(local) {
		r, l := remote[i], local[j]
		switch {
		case r.Path == l.Path:
			if !digest.Equal(r.Digest, l.Digest) {
				p.Puts = append(p.Puts, putOp(l))
			}
			i++
			j++
		case l.Path < r.Path:
			p.Puts = append(p.Puts, putOp(l))
			j++
		default:
			p.Deletes = append(p.Deletes, deleteOp(r))
			i++
		}
	}
	for ; j < len(local); j++ {
		p.Puts = append(p.Puts, putOp(local[j]))
	}
	for ; i < len(remote); i++ {
		p.Deletes = append(p.Deletes, deleteOp(remote[i]))
	}
	return p
}

func putOp(e Entry) Op {
	return Op{Type: OpPut, Path: e.Path, Digest: e.Digest, Size: e.Size}
}

func deleteOp(e Entry) Op {
	return Op{Type: OpDelete, Path: e.Path}
}

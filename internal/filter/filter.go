// Package filter restricts which documents a query may score.
package filter

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// Func reports whether docID may be scored. A nil Func admits everything.
type Func func(docID uint64) bool

func (f Func) Admit(docID uint64) bool {
	return f == nil || f(docID)
}

// Allow admits only documents in ids.
func Allow(ids *roaring64.Bitmap) Func {
	return func(docID uint64) bool { return ids.Contains(docID) }
}

// Deny admits every document not in ids.
func Deny(ids *roaring64.Bitmap) Func {
	return func(docID uint64) bool { return !ids.Contains(docID) }
}

// DenyIDs is Deny over a literal id list. It returns nil for an empty list
// so callers can skip filtering entirely.
func DenyIDs(ids []uint64) Func {
	if len(ids) == 0 {
		return nil
	}
	return Deny(roaring64.BitmapOf(ids...))
}

// All admits a document only if every non-nil filter does.
func All(filters ...Func) Func {
	active := make([]Func, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(docID uint64) bool {
		for _, f := range active {
			if !f(docID) {
				return false
			}
		}
		return true
	}
}

package recordstore

import (
	"github.com/samber/lo"

	"crmextract/internal/records"
)

// Merge reconciles incoming into existing and returns the new collection.
//
// For each incoming record the first stored entry whose id or name equals the
// incoming one wins; records appended earlier in the same batch take part in
// the search. A match is shallow-merged (incoming values overwrite, fields
// only on the stored entry survive); no match appends. existing is not
// modified.
func Merge(existing, incoming []records.Record) (merged []records.Record, inserted, updated int) {
	merged = make([]records.Record, 0, len(existing)+len(incoming))
	for _, r := range existing {
		merged = append(merged, r.Clone())
	}

	for _, in := range incoming {
		_, idx, found := lo.FindIndexOf(merged, func(r records.Record) bool {
			return sameIdentity(r, in)
		})
		if found {
			merged[idx] = merged[idx].Merge(in)
			updated++
			continue
		}
		merged = append(merged, in.Clone())
		inserted++
	}
	return merged, inserted, updated
}

func sameIdentity(stored, in records.Record) bool {
	if in.ID != "" && stored.ID == in.ID {
		return true
	}
	return in.Name != "" && stored.Name == in.Name
}

package refs

// AssignIDs gives every document listed in keys that lacks a string id the
// slash-normalised key as its id. It returns a *DuplicateIDError for each id
// shared by more than one of those documents.
func AssignIDs(set *DocumentSet, keys []string) []error {
	if set == nil {
		return nil
	}
	owners := make(map[string][]string, len(keys))
	order := make([]string, 0, len(keys))
	for _, key := range keys {
		doc, ok := set.Get(key)
		if !ok || doc == nil {
			continue
		}
		id, ok := doc.ID()
		if !ok {
			id = NormalizeKey(key)
			doc.Set(IDField, id)
		}
		if _, seen := owners[id]; !seen {
			order = append(order, id)
		}
		owners[id] = append(owners[id], NormalizeKey(key))
	}

	var errs []error
	for _, id := range order {
		if paths := owners[id]; len(paths) > 1 {
			errs = append(errs, &DuplicateIDError{ID: id, Paths: paths})
		}
	}
	return errs
}

package survey

// Resolve pairs real and ideal points that share a label.
//
// Pairs follow the order of the real input. Real points without an ideal label are
// returned as warnings. A label repeated within either collection is a
// DuplicateLabelError. Fewer than two pairs is not an error here; the aligner
// rejects that case.
func Resolve(real, ideal []LabeledPoint) (CorrespondenceSet, []UnmatchedLabelWarning, error) {
	idealByLabel := make(map[string]Point, len(ideal))
	for _, lp := range ideal {
		if _, dup := idealByLabel[lp.Label]; dup {
			return nil, nil, &DuplicateLabelError{Label: lp.Label, Collection: "ideal"}
		}
		idealByLabel[lp.Label] = lp.Point()
	}

	seen := make(map[string]struct{}, len(real))
	for _, lp := range real {
		if _, dup := seen[lp.Label]; dup {
			return nil, nil, &DuplicateLabelError{Label: lp.Label, Collection: "real"}
		}
		seen[lp.Label] = struct{}{}
	}

	pairs := make(CorrespondenceSet, 0, len(real))
	var unmatched []UnmatchedLabelWarning
	for i, lp := range real {
		target, ok := idealByLabel[lp.Label]
		if !ok {
			unmatched = append(unmatched, UnmatchedLabelWarning{Label: lp.Label, Index: i})
			continue
		}
		pairs = append(pairs, CorrespondencePair{
			Label: lp.Label,
			Real:  lp.Point(),
			Ideal: target,
		})
	}

	return pairs, unmatched, nil
}

// IdealIndex builds a label lookup for use with Apply
func IdealIndex(ideal []LabeledPoint) map[string]Point {
	idx := make(map[string]Point, len(ideal))
	for _, lp := range ideal {
		idx[lp.Label] = lp.Point()
	}
	return idx
}

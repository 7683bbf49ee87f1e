package automation

// Resolve returns the ordered action list for a key in the given table:
// the "all" list followed by the field-specific list. Both lists run;
// neither replaces the other and duplicates are preserved. An unknown key
// yields an empty list.
func Resolve(table map[string]RuleSet, key, fieldID string) []Action {
	rules, ok := table[key]
	if !ok {
		return nil
	}

	all := rules[RuleKeyAll]
	var perField []Action
	if fieldID != "" {
		perField = rules[fieldID]
	}

	if len(all) == 0 && len(perField) == 0 {
		return nil
	}

	resolved := make([]Action, 0, len(all)+len(perField))
	resolved = append(resolved, all...)
	resolved = append(resolved, perField...)
	return resolved
}

// HasKey reports whether the table contains any rules for key. Used for the
// relevance check before processing side effects.
func HasKey(table map[string]RuleSet, key string) bool {
	_, ok := table[key]
	return ok
}

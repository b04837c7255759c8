package domain

// StoreResult summarises what a relational load wrote.
type StoreResult struct {
	// Municipalities is the number of distinct names offered to the catalogue.
	Municipalities int
	// FarmIDs are the generated farm keys, in record order.
	FarmIDs []int64
}

// MunicipalityNames returns the distinct non-empty municipality names in
// first-seen order.
func MunicipalityNames(records []FarmRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if r.Municipality == nil || *r.Municipality == "" || seen[*r.Municipality] {
			continue
		}
		seen[*r.Municipality] = true
		names = append(names, *r.Municipality)
	}
	return names
}

package completion

import "strings"

// UnknownEmployee labels records that carry no completed_by name.
const UnknownEmployee = "Desconhecido"

// EmployeeGroup is the records one employee completed on a day.
type EmployeeGroup struct {
	Employee string   `json:"employee"`
	Count    int      `json:"count"`
	Records  []Record `json:"records"`
}

// GroupByEmployee buckets records by completed_by in first-seen order.
func GroupByEmployee(records []Record) []EmployeeGroup {
	var groups []EmployeeGroup
	index := make(map[string]int)
	for _, rec := range records {
		name := strings.TrimSpace(rec.CompletedBy)
		if name == "" || name == NotAvailable {
			name = UnknownEmployee
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, EmployeeGroup{Employee: name})
		}
		groups[i].Records = append(groups[i].Records, rec)
		groups[i].Count++
	}
	return groups
}

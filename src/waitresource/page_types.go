package waitresource

import "fmt"

var pageTypeLabels = map[int]string{
	1:  "Data",
	2:  "Index",
	3:  "Text mix",
	4:  "Text tree",
	7:  "Sort",
	8:  "GAM",
	9:  "SGAM",
	10: "IAM",
	11: "PFS",
	13: "Boot",
	15: "File header",
	16: "Diff map",
	17: "ML map",
	18: "Deallocated",
	19: "Index reorg temp",
	20: "Bulk load pre-allocation",
}

// PageTypeLabel formats a page type code as "<code> - <label>"
func PageTypeLabel(code int) string {
	label, ok := pageTypeLabels[code]
	if !ok {
		label = "Other"
	}
	return fmt.Sprintf("%d - %s", code, label)
}

package models

// Page describes one slice of the compare set and the size of the filtered
// universe it was cut from.
type Page struct {
	Query      string `json:"query"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	TotalRows  int64  `json:"total_rows"`
	TotalPages int64  `json:"total_pages"`
}

// PageCount returns max(1, ceil(total/size)).
func PageCount(total int64, size int) int64 {
	if size <= 0 || total <= 0 {
		return 1
	}

	return (total + int64(size) - 1) / int64(size)
}

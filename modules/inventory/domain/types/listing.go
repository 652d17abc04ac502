package types

// ListOptions are the caller-facing listing parameters. Page is 1-based;
// a PageSize <= 0 disables pagination. SortColumns and SortDirections are
// positionally paired and must have equal length.
type ListOptions struct {
	Page           int
	PageSize       int
	SortColumns    []string
	SortDirections []string
}

// SortDirection values accepted in ListOptions.SortDirections. Anything
// other than "DESC" sorts ascending, matching the legacy behavior.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

package construction

// Quota bounds the search. Implementations must be safe for concurrent use.
type Quota interface {
	IsReached() bool
}

func isQuotaReached(q Quota) bool {
	return q != nil && q.IsReached()
}

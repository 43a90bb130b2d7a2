package domain

// WorkloadEntry is one row of the derived workload cache: the count of
// non-archived work items per (workspace, phase, status). The cache is a
// materialized projection recomputed in full per workspace; it may be
// dropped and rebuilt at any time without losing source-of-truth data.
type WorkloadEntry struct {
	WorkspaceID string
	Phase       Phase
	Status      Status
	Count       int
}

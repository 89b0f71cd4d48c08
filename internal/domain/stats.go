package domain

// Stats is the aggregate view of the registry. It is derived, never stored.
type Stats struct {
	TotalDonors        int                `json:"totalDonors"`
	TotalRequests      int                `json:"totalRequests"`
	PendingRequests    int                `json:"pendingRequests"`
	ApprovedRequests   int                `json:"approvedRequests"`
	RejectedRequests   int                `json:"rejectedRequests"`
	FulfilledRequests  int                `json:"fulfilledRequests"`
	CriticalPending    int                `json:"criticalPending"`
	DonorsByBloodGroup map[BloodGroup]int `json:"donorsByBloodGroup"`
}

// ComputeStats scans both record sets once.
func ComputeStats(donors []Donor, requests []BloodRequest) Stats {
	s := Stats{
		TotalDonors:        len(donors),
		TotalRequests:      len(requests),
		DonorsByBloodGroup: CountByBloodGroup(donors),
	}
	for _, r := range requests {
		switch r.Status {
		case StatusPending:
			s.PendingRequests++
			if r.UrgencyLevel == UrgencyCritical {
				s.CriticalPending++
			}
		case StatusApproved:
			s.ApprovedRequests++
		case StatusRejected:
			s.RejectedRequests++
		case StatusFulfilled:
			s.FulfilledRequests++
		}
	}
	return s
}

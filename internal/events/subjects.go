package events

const (
	SubjectJobRequest = "fieldops.job.request"

	StreamName   = "FIELDOPS_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectAssignmentCreated(id string) string    { return "fieldops.assignment." + id + ".created" }
func SubjectAssignmentReassigned(id string) string { return "fieldops.assignment." + id + ".reassigned" }
func SubjectAssignmentUnassigned(id string) string { return "fieldops.assignment." + id + ".unassigned" }
func SubjectQuoteIssued(id string) string          { return "fieldops.quote." + id + ".issued" }

package models

// Area is a top-level section of the application.
type Area string

// Action is a fine-grained operation gated by status.
type Action string

const (
	ActionBookConsultation    Action = "book_consultation"
	ActionViewConsultation    Action = "view_consultation"
	ActionMakePayment         Action = "make_payment"
	ActionAccessEnrollment    Action = "access_enrollment"
	ActionSubmitEnrollment    Action = "submit_enrollment"
	ActionAccessBilling       Action = "access_billing"
	ActionAccessDocuments     Action = "access_documents"
	ActionAccessStudentPortal Action = "access_student_portal"
)

// Actions lists every named action.
func Actions() []Action {
	return []Action{
		ActionBookConsultation,
		ActionViewConsultation,
		ActionMakePayment,
		ActionAccessEnrollment,
		ActionSubmitEnrollment,
		ActionAccessBilling,
		ActionAccessDocuments,
		ActionAccessStudentPortal,
	}
}

// GuardDecision is the outcome of a route guard check. When Allow is false,
// RedirectTo is set; ResumeArea is set only for unauthenticated requests.
type GuardDecision struct {
	Allow      bool `json:"allow"`
	RedirectTo Area `json:"redirect_to,omitempty"`
	ResumeArea Area `json:"resume_area,omitempty"`
}

package email

const (
	subjectLeadAssignedFmt  = "Nieuwe lead toegewezen: %s"
	subjectTokenDeactivated = "Mailbox-koppeling verlopen"
)

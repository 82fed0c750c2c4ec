package models

// CardStatus represents the review state of a directory card
type CardStatus string

const (
	CardStatusUnset     CardStatus = ""          // Zero value = unset/unknown
	CardStatusPending   CardStatus = "pending"   // Inserted by the crawl pipeline, not reviewed
	CardStatusPublished CardStatus = "published" // Created or approved through the admin API
)

// String implements fmt.Stringer for logging
func (s CardStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusPending, CardStatusPublished:
		return true
	}
	return false
}

// FeedbackStatus represents the triage state of an error report
type FeedbackStatus string

const (
	FeedbackStatusNew        FeedbackStatus = "new"
	FeedbackStatusProcessing FeedbackStatus = "processing"
	FeedbackStatusResolved   FeedbackStatus = "resolved"
	FeedbackStatusRejected   FeedbackStatus = "rejected"
)

// String implements fmt.Stringer for logging
func (s FeedbackStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s FeedbackStatus) IsValid() bool {
	switch s {
	case FeedbackStatusNew, FeedbackStatusProcessing, FeedbackStatusResolved, FeedbackStatusRejected:
		return true
	}
	return false
}

// OutcomeResult is the terminal result of one pipeline run for a URL
type OutcomeResult string

const (
	OutcomeSaved     OutcomeResult = "saved"     // New pending card written
	OutcomeDuplicate OutcomeResult = "duplicate" // Candidate matched an existing card
	OutcomeFailed    OutcomeResult = "failed"    // Fetch, extraction or storage failure
)

// String implements fmt.Stringer for logging
func (r OutcomeResult) String() string {
	if r == "" {
		return "unset"
	}
	return string(r)
}

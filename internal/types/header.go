package types

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAgencyID  = "X-Agency-ID"
	HeaderActor     = "X-Actor"
)

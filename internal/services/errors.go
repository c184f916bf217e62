package services

// Error reasons surfaced through kratos errors at the service boundary.
const (
	ReasonOrderInvalid       = "ORDER_INVALID"
	ReasonOrderNotFound      = "ORDER_NOT_FOUND"
	ReasonOrderStateConflict = "ORDER_STATE_CONFLICT"
	ReasonOrderWriteFailed   = "ORDER_WRITE_FAILED"
	ReasonOrderQueryFailed   = "ORDER_QUERY_FAILED"
	ReasonQueryTimeout       = "QUERY_TIMEOUT"
)

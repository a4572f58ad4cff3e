package dto

// SPML operation types accepted inside a batch.
const (
	OperationAdd    = "add"
	OperationModify = "modify"
	OperationDelete = "delete"
)

// SPMLRequest is one decoded add, modify or delete request. Attributes is the flat
// attribute map the feed sends, keyed by the fixed attribute names.
type SPMLRequest struct {
	RequestID  string            `json:"requestId"`
	Attributes map[string]string `json:"attributes"`
}

// BatchItem is a single sub-request of a batch. An unrecognised Type fails that item only.
type BatchItem struct {
	Type       string            `json:"type"`
	RequestID  string            `json:"requestId"`
	Attributes map[string]string `json:"attributes"`
}

// BatchRequest carries ordered sub-requests.
type BatchRequest struct {
	RequestID string      `json:"requestId"`
	Requests  []BatchItem `json:"requests"`
}

// LogQuery filters the request log listing.
type LogQuery struct {
	Login string `form:"-" validate:"required"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

package models

import "time"

// NullLogin is recorded when a request carries no usable login.
const NullLogin = "null"

// Request types as logged.
const (
	RequestAdd    = "AddRequest"
	RequestModify = "ModifyRequest"
	RequestDelete = "DeleteRequest"
	RequestBatch  = "BatchRequest"
)

// RequestLog is one raw inbound request.
type RequestLog struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"spml_type" json:"type"`
	Body      string    `db:"spml_body" json:"body"`
	Login     string    `db:"user_eid" json:"login"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UpdatedUser flags a student for the downstream enrollment job.
type UpdatedUser struct {
	Login      string    `db:"user_eid" json:"login"`
	DateQueued time.Time `db:"date_queued" json:"dateQueued"`
}

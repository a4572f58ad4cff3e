package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Account is the directory record keyed by login.
type Account struct {
	ID           string            `db:"id" json:"id"`
	Login        string            `db:"login" json:"login"`
	FirstName    string            `db:"first_name" json:"firstName"`
	LastName     string            `db:"last_name" json:"lastName"`
	Email        string            `db:"email" json:"email"`
	Type         string            `db:"type" json:"type"`
	PasswordHash *string           `db:"password_hash" json:"-"`
	Locked       bool              `db:"locked" json:"locked"`
	CanProvision bool              `db:"can_provision" json:"canProvision"`
	Properties   AccountProperties `db:"properties" json:"properties"`
	UpdatedBy    *string           `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// AccountProperties is the account property bag persisted as JSONB.
type AccountProperties struct {
	LastSpmlUpdate   *time.Time `json:"spml_last_update,omitempty"`
	DeactivatedSince *time.Time `json:"SPML_DEACTIVATED,omitempty"`
	DataClearedAt    *string    `json:"data_cleared_last,omitempty"`
	ContentRemoved   *string    `json:"workspace_content_removed,omitempty"`
	WelcomeEmailSent bool       `json:"uctNewMailSent,omitempty"`
}

// Value marshals properties to JSON for persistence.
func (p AccountProperties) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal account properties: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the property bag.
func (p *AccountProperties) Scan(value interface{}) error {
	if value == nil {
		*p = AccountProperties{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AccountProperties", value)
	}
	if len(data) == 0 {
		*p = AccountProperties{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal account properties: %w", err)
	}
	return nil
}

// Clone returns a deep copy so reconciliation can work on detached values.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Properties.LastSpmlUpdate = cloneTime(a.Properties.LastSpmlUpdate)
	out.Properties.DeactivatedSince = cloneTime(a.Properties.DeactivatedSince)
	out.Properties.DataClearedAt = cloneString(a.Properties.DataClearedAt)
	out.Properties.ContentRemoved = cloneString(a.Properties.ContentRemoved)
	out.PasswordHash = cloneString(a.PasswordHash)
	out.UpdatedBy = cloneString(a.UpdatedBy)
	return &out
}

// Identity is the principal a directory or profile operation acts as.
type Identity struct {
	AccountID    string `json:"accountId"`
	Login        string `json:"login"`
	CanProvision bool   `json:"canProvision"`
}

// IdentityOf returns the identity of an account acting for itself.
func IdentityOf(a *Account) Identity {
	return Identity{AccountID: a.ID, Login: a.Login, CanProvision: a.CanProvision}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

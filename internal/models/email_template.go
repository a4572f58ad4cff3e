package models

// EmailTemplate is a named welcome-mail template. Subject and Body use text/template syntax.
type EmailTemplate struct {
	Key     string `yaml:"key" json:"key"`
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

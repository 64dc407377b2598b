package common

// EmailSender is implemented by the HTTP provider client and by the test
// doubles below. Receipt and low-stock emails go through this interface.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is a single message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records messages instead of sending them.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender drops messages. Used when email delivery is disabled.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }

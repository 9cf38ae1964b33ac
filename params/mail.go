package params

// MailConfig configures outbound email.
// With an empty Host, messages are logged instead of sent.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// Workers bounds the number of messages in flight.
	Workers int
}

func DefaultMailConfig() *MailConfig {
	return &MailConfig{
		Port:    587,
		From:    "itrek <no-reply@itrek.app>",
		Workers: 5,
	}
}

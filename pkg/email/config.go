package email

// Config holds email delivery settings.
// The Postmark tokens are optional outside production: without them the
// sender writes messages to DevDir instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

func (c Config) hasPostmarkTokens() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}

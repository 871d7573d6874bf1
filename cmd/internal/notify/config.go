package notify

// Provider names.
const (
	ProviderLog      = "log"
	ProviderPostmark = "postmark"
	ProviderSNS      = "sns"
)

// Config selects and configures the delivery transports.
// Postmark tokens may be given inline or as SSM parameter names (the *_PARAM fields);
// inline values win.
type Config struct {
	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"log"`
	SenderEmail   string `env:"SENDER_EMAIL" envDefault:"alerts@rpms.local"`
	ReplyTo       string `env:"REPLY_TO_EMAIL"`
	Tag           string `env:"EMAIL_TAG" envDefault:"rpms"`

	PostmarkServerToken       string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkServerTokenParam  string `env:"POSTMARK_SERVER_TOKEN_PARAM"`
	PostmarkAccountToken      string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkAccountTokenParam string `env:"POSTMARK_ACCOUNT_TOKEN_PARAM"`

	SMSProvider string `env:"SMS_PROVIDER" envDefault:"log"`
	SMSSenderID string `env:"SMS_SENDER_ID"`
}

// NeedsAWS reports whether building the transports requires AWS credentials.
func (c Config) NeedsAWS() bool {
	return c.SMSProvider == ProviderSNS ||
		(c.EmailProvider == ProviderPostmark &&
			((c.PostmarkServerToken == "" && c.PostmarkServerTokenParam != "") ||
				(c.PostmarkAccountToken == "" && c.PostmarkAccountTokenParam != "")))
}

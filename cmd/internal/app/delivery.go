package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"rpms/cmd/internal/metrics"
	"rpms/cmd/internal/notify"
	"rpms/cmd/internal/secrets"
)

// newGateway builds the email and SMS channels selected by cfg.Notify.
// AWS configuration is loaded only when a selected transport needs it.
func newGateway(ctx context.Context, cfg Config, log Logger, rec *metrics.Recorder) (*notify.Gateway, error) {
	nc := cfg.Notify

	var (
		awsCfg aws.Config
		params secrets.Getter
	)
	if nc.NeedsAWS() {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		awsCfg = c

		ps, err := secrets.NewParamStore(ssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		params = ps
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if nc.EmailProvider == notify.ProviderPostmark {
		server, err := secrets.Resolve(ctx, params, nc.PostmarkServerToken, nc.PostmarkServerTokenParam)
		if err != nil {
			return nil, err
		}
		account, err := secrets.Resolve(ctx, params, nc.PostmarkAccountToken, nc.PostmarkAccountTokenParam)
		if err != nil {
			return nil, err
		}
		pm, err := notify.NewPostmarkMailer(server, account, nc.SenderEmail, nc.ReplyTo)
		if err != nil {
			return nil, err
		}
		mailer = pm
	}

	var sender notify.SMSSender = notify.LogSender{Log: log}
	if nc.SMSProvider == notify.ProviderSNS {
		s, err := notify.NewSNSSender(sns.NewFromConfig(awsCfg), nc.SMSSenderID)
		if err != nil {
			return nil, err
		}
		sender = s
	}

	email, err := notify.NewEmailChannel(mailer, nc.Tag)
	if err != nil {
		return nil, err
	}
	sms, err := notify.NewSMSChannel(sender)
	if err != nil {
		return nil, err
	}

	log.Info("notify.configured", "email_provider", nc.EmailProvider, "sms_provider", nc.SMSProvider)
	return notify.NewGateway([]notify.Channel{email, sms},
		notify.WithGatewayLogger(log),
		notify.WithGatewayMetrics(rec),
	)
}

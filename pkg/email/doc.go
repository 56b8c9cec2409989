// Package email sends transactional email.
//
// Sender has two implementations: PostmarkSender delivers through the
// Postmark API, DevSender writes messages to a local directory. New chooses
// between them from the configuration and the deployment environment:
//
//	sender, err := email.New(cfg, environment.Parse(appEnv))
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "artist@example.com",
//	    Subject:  "Your plan is active",
//	    BodyHTML: "<p>Welcome to Pro.</p>",
//	    Tag:      "entitlement-activated",
//	})
//
// Parameters are validated before sending. Failures wrap ErrFailedToSendEmail,
// bad input wraps ErrInvalidParams and bad configuration ErrInvalidConfig.
package email

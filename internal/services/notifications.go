package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/mail"
)

// tokenMailer renders and delivers the messages that carry single-use tokens.
type tokenMailer struct {
	mailer  mail.Mailer
	baseURL string
}

func newTokenMailer(mailer mail.Mailer, baseURL string) tokenMailer {
	return tokenMailer{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

// send delivers the message for issued. Delivery problems are logged rather than returned: the
// token exists and the user can request a new message.
func (m tokenMailer) send(ctx context.Context, issued *tokens.Issued) {
	if m.mailer == nil || issued == nil {
		return
	}

	msg := mail.Message{To: []string{issued.Email}}
	switch issued.Kind {
	case tokens.KindVerification:
		msg.Subject = "Confirm your inkpost account"
		msg.Body = fmt.Sprintf("Welcome to inkpost!\n\nPlease confirm your email address by visiting the link below:\n%s\n\nThe link expires at %s.\n",
			m.link("/verify-email", issued), issued.ExpiresAt.Format(time.RFC1123))
	case tokens.KindPasswordReset:
		msg.Subject = "Reset your inkpost password"
		msg.Body = fmt.Sprintf("Someone asked to reset the password of your inkpost account.\n\nUse the link below to choose a new one:\n%s\n\nIf this wasn't you, you can ignore this message.\n",
			m.link("/reset-password", issued))
	case tokens.KindTwoFactor:
		msg.Subject = "Your inkpost sign-in code"
		msg.Body = fmt.Sprintf("Your sign-in code is %s\n\nIt expires in a few minutes.\n", issued.Value)
	default:
		return
	}

	if err := m.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.WithModule("mail").Warn("failed to deliver token email",
			zap.String("kind", issued.Kind.String()),
			zap.Error(err),
		)
	}
}

func (m tokenMailer) link(path string, issued *tokens.Issued) string {
	query := url.Values{}
	query.Set("token", issued.Value)
	query.Set("email", issued.Email)
	return m.baseURL + path + "?" + query.Encode()
}

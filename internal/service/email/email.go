// Package email composes reset password and verification emails and hands them to a Sender.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers composed messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Service struct {
	sender Sender

	// Base of links put into emails, e.g. https://app.example.com
	appURL string
}

func NewService(sender Sender, appURL string) *Service {
	return &Service{
		sender: sender,
		appURL: strings.TrimRight(appURL, "/"),
	}
}

func (s *Service) link(path string, token string) string {
	return s.appURL + path + "?token=" + url.QueryEscape(token)
}

func (s *Service) SendResetPassword(ctx context.Context, to string, token string) error {
	msg := Message{
		To:      to,
		Subject: "Reset password",
		Text: fmt.Sprintf("Dear user,\nTo reset your password, click on this link: %s\n"+
			"If you did not request any password resets, then ignore this email.",
			s.link("/reset-password", token)),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("error while sending reset password email. Err: %w", err)
	}
	return nil
}

func (s *Service) SendVerificationEmail(ctx context.Context, to string, token string) error {
	msg := Message{
		To:      to,
		Subject: "Email Verification",
		Text: fmt.Sprintf("Dear user,\nTo verify your email, click on this link: %s\n"+
			"If you did not create an account, then ignore this email.",
			s.link("/verify-email", token)),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("error while sending verification email. Err: %w", err)
	}
	return nil
}

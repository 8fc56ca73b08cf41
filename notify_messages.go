package goCred

import (
	"fmt"
	"strings"
	"time"
)

func verificationMessage(s Subject, link string, maxAge time.Duration) Message {
	return Message{
		To:      s.Handle,
		Subject: "Verify Your Email",
		Body: greeting(s) +
			"Please confirm your email address by opening the link below.\n\n" +
			link + "\n\n" +
			expiryNotice(maxAge),
	}
}

func resetMessage(s Subject, link string, maxAge time.Duration) Message {
	return Message{
		To:      s.Handle,
		Subject: "Reset Your Password",
		Body: greeting(s) +
			"We received a request to reset your password. Open the link below to choose a new one.\n\n" +
			link + "\n\n" +
			expiryNotice(maxAge) +
			"If you did not request a reset you can ignore this email.\n",
	}
}

func passwordChangedMessage(s Subject) Message {
	return Message{
		To:      s.Handle,
		Subject: "Your Password Was Changed",
		Body: greeting(s) +
			"The password for your account was just changed. " +
			"If this was not you, reset your password immediately.\n",
	}
}

func greeting(s Subject) string {
	name := strings.TrimSpace(s.FirstName)
	if name == "" {
		name = s.Username
	}
	if name == "" {
		return "Hello,\n\n"
	}
	return "Hello " + name + ",\n\n"
}

func expiryNotice(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "This link expires in 1 minute.\n"
	}
	return fmt.Sprintf("This link expires in %d minutes.\n", minutes)
}

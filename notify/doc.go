// Package notify provides goCred.Notifier implementations: LogSender writes
// messages to a structured logger for development, SMTPSender delivers them
// over SMTP.
package notify

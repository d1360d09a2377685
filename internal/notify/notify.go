package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/domain"
)

// Reminder is one installment a member is being reminded about
type Reminder struct {
	Member    *domain.Member
	LoanID    string
	Repayment *domain.Repayment
}

// Notifier delivers repayment reminders to members
type Notifier interface {
	SendRepaymentReminder(reminder Reminder) error
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    config.MailConfig
	logger logrus.FieldLogger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg config.MailConfig, logger logrus.FieldLogger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// BuildReminder formats the reminder email for an installment
func (s *Sender) BuildReminder(reminder Reminder) *email.Email {
	r := reminder.Repayment
	overdue := r.Status == domain.RepaymentStatusOverdue

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{reminder.Member.Email}
	if overdue {
		e.Subject = "Overdue Loan Repayment Notification"
	} else {
		e.Subject = "Upcoming Loan Repayment Reminder"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", reminder.Member.Name)
	if overdue {
		fmt.Fprintf(&body,
			"Installment %d of your loan %s, KES %s, was due on %s and is now overdue.\n"+
				"Please make the payment as soon as possible.\n",
			r.InstallmentNumber, reminder.LoanID, formatAmount(r.Amount), r.DueDate.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&body,
			"This is a reminder that installment %d of your loan %s, KES %s, is due on %s.\n",
			r.InstallmentNumber, reminder.LoanID, formatAmount(r.Amount), r.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&body, "\nBest regards,\n%s", s.cfg.SaccoName)
	e.Text = []byte(body.String())

	return e
}

// SendRepaymentReminder sends a repayment reminder email
func (s *Sender) SendRepaymentReminder(reminder Reminder) error {
	if reminder.Member == nil || reminder.Member.Email == "" {
		return fmt.Errorf("member has no email address")
	}

	e := s.BuildReminder(reminder)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := s.send(e, addr, auth); err != nil {
		s.logger.WithError(err).WithField("to", reminder.Member.Email).Error("Failed to send reminder")
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"to": reminder.Member.Email, "subject": e.Subject}).Info("Email sent")
	return nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// LogNotifier only logs reminders; used when no SMTP host is configured
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n LogNotifier) SendRepaymentReminder(reminder Reminder) error {
	n.Logger.WithFields(logrus.Fields{
		"member_id":   reminder.Member.ID,
		"loan_id":     reminder.LoanID,
		"installment": reminder.Repayment.InstallmentNumber,
		"status":      reminder.Repayment.Status,
	}).Info("repayment reminder (smtp disabled)")
	return nil
}

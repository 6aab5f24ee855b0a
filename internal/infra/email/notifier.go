package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// SMTPNotifier mails the operator address when a job fails permanently,
// including reaper kills. Disabled when no host is configured.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, jobID, videoURI, errorMsg string) error {
	if n.host == "" {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Video analysis job failed [%s]", jobID)
	body := fmt.Sprintf(
		"An analysis job reached FAILURE.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Video: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Check GET /status/%s for the full record.\r\n",
		jobID, videoURI, errorMsg, jobID,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification sent", zap.String("job_id", jobID))
	return nil
}

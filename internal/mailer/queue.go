package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dazeez1/notes-app/internal/mq"
)

// MailJob is the payload published for the external delivery worker.
type MailJob struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// QueueMailer hands mail jobs to a broker channel instead of sending them
// itself. The actual SMTP delivery happens in a separate worker consuming
// the channel.
type QueueMailer struct {
	queue   *mq.MQ
	channel string
	from    string
}

// NewQueueMailer constructs a QueueMailer publishing on the given channel.
func NewQueueMailer(queue *mq.MQ, channel, from string) *QueueMailer {
	return &QueueMailer{
		queue:   queue,
		channel: channel,
		from:    from,
	}
}

func (m *QueueMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	job := MailJob{
		From:    m.from,
		To:      to,
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n\nIf you did not sign up, ignore this message.\n",
			name, code,
		),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = m.queue.Publish(ctx, m.channel, data, map[string]string{"type": "verification"})
	return err
}

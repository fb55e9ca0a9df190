package gmailclient

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

const EMAIL_INTERVAL = 3 * time.Second

const messageIDDomain = "volunteer-dispatch.local"

// SendEmail sends a plain text email with the specified subject and body.
// Sends are spaced at least the client interval apart to respect Gmail API rate limits.
func (c *Client) SendEmail(to, subject, body string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		elapsed := time.Since(c.lastSendTime)
		if elapsed < c.interval {
			time.Sleep(c.interval - elapsed)
		}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), messageIDDomain)
	raw := buildMessage(c.sender, to, subject, body, messageID)

	gmailMessage := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	sent, err := c.service.Users.Messages.Send(c.userID, gmailMessage).Context(c.ctx).Do()
	c.lastSendTime = time.Now()
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Email sent",
		zap.String("to", to),
		zap.String("message_id", messageID),
		zap.String("gmail_id", sent.Id))

	return nil
}

// buildMessage renders an RFC 2822 message. An empty from leaves the sender to Gmail.
func buildMessage(from, to, subject, body, messageID string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// Package mail is the transport boundary: the pipeline hands it a finished
// message and does not care whether delivery happens over SMTP or a
// transactional-email HTTP API.
package mail

import (
	"context"
	"fmt"
)

// Attachment is one in-memory file attached to a message.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Message is a plain-text email with a single attachment.
type Message struct {
	From       string
	To         []string
	Subject    string
	Body       string
	Attachment Attachment
}

// Mailer delivers a message. Implementations report failure via *SendError.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendError is any delivery failure: auth rejection, invalid recipient,
// vendor-side rejection. The underlying diagnostic is always preserved.
type SendError struct {
	Transport string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send via %s: %v", e.Transport, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

package checker

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// fetchedMail is one message pulled from a mailbox during a check
type fetchedMail struct {
	Subject  string
	Sender   string
	Received time.Time
	BodyText string
	BodyHTML string
	Folder   string
}

// imapSession is one authenticated connection to a mail provider
type imapSession struct {
	client *client.Client
}

// dialIMAP connects over TLS and logs in
func dialIMAP(server, username, password string, timeout time.Duration) (*imapSession, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := c.Login(username, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return &imapSession{client: c}, nil
}

func (s *imapSession) close() {
	s.client.Logout()
}

// fetchRecent returns up to limit of the newest messages in a folder
func (s *imapSession) fetchRecent(folder string, limit uint32) ([]*fetchedMail, error) {
	mbox, err := s.client.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > limit {
		from = mbox.Messages - limit + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	var mails []*fetchedMail
	for msg := range messages {
		mails = append(mails, parseMessage(msg, section, folder))
	}

	if err := <-done; err != nil {
		return mails, fmt.Errorf("failed to fetch: %w", err)
	}
	return mails, nil
}

// parseMessage extracts envelope fields and the text/html bodies
func parseMessage(msg *imap.Message, section *imap.BodySectionName, folder string) *fetchedMail {
	m := &fetchedMail{Folder: folder}

	if msg.Envelope != nil {
		m.Subject = msg.Envelope.Subject
		m.Received = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			m.Sender = msg.Envelope.From[0].Address()
		}
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return m
	}

	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return m
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		if strings.HasPrefix(ct, "text/html") {
			m.BodyHTML = string(body)
		} else if strings.HasPrefix(ct, "text/plain") {
			m.BodyText = string(body)
		}
	}

	return m
}

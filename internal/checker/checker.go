package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fireflower/firemail/internal/parser"
	"github.com/fireflower/firemail/internal/store"
	"github.com/fireflower/firemail/pkg/models"
)

// fetchLimit caps how many of the newest messages one check pulls per folder
const fetchLimit = 20

// ProgressFunc reports check progress for one mailbox as a percentage plus
// a human-readable message
type ProgressFunc = func(mailboxID int64, percent int, message string)

// Checker fetches mail for registered mailboxes and appends the results to
// the store as mail records.
type Checker struct {
	store       *store.Store
	parser      *parser.HTMLParser
	workers     int
	dialTimeout time.Duration
	logger      *slog.Logger
}

// New creates a mail checker backed by the given store
func New(st *store.Store, workers int, dialTimeout time.Duration, logger *slog.Logger) *Checker {
	if workers <= 0 {
		workers = 1
	}
	return &Checker{
		store:       st,
		parser:      parser.NewHTMLParser(),
		workers:     workers,
		dialTimeout: dialTimeout,
		logger:      logger.With("component", "checker"),
	}
}

// BatchCheck checks the given mailboxes on a bounded worker pool. Progress
// across mailboxes interleaves with no ordering guarantee; progress within
// one mailbox is ordered. Returns when every mailbox has finished.
func (c *Checker) BatchCheck(ctx context.Context, mailboxIDs []int64, progress ProgressFunc) {
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for _, id := range mailboxIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			c.checkMailbox(ctx, id, progress)
		}(id)
	}

	wg.Wait()
}

// checkMailbox runs one mailbox check end to end. Any failure ends this
// mailbox's check with a progress message; other mailboxes are unaffected.
func (c *Checker) checkMailbox(ctx context.Context, id int64, progress ProgressFunc) {
	mb := c.store.MailboxByID(ctx, id)
	if mb == nil {
		progress(id, 100, "mailbox not found")
		return
	}

	progress(id, 0, fmt.Sprintf("checking %s", mb.Address))

	server := mb.Server
	if server == "" {
		resolved, err := resolveIMAPServer(mb.Address)
		if err != nil {
			c.logger.Error("failed to resolve IMAP server", "address", mb.Address, "error", err)
			progress(id, 100, fmt.Sprintf("cannot resolve server for %s", mb.Address))
			return
		}
		server = resolved
	} else if mb.Port > 0 {
		server = fmt.Sprintf("%s:%d", mb.Server, mb.Port)
	}

	progress(id, 10, fmt.Sprintf("connecting to %s", server))

	session, err := dialIMAP(server, mb.Address, mb.Password, c.dialTimeout)
	if err != nil {
		c.logger.Error("failed to connect", "address", mb.Address, "server", server, "error", err)
		progress(id, 100, fmt.Sprintf("connection failed: %v", err))
		return
	}
	defer session.close()

	progress(id, 30, "fetching messages")

	mails, err := session.fetchRecent("INBOX", fetchLimit)
	if err != nil {
		c.logger.Error("failed to fetch messages", "address", mb.Address, "error", err)
		progress(id, 100, fmt.Sprintf("fetch failed: %v", err))
		return
	}

	stored := 0
	for i, m := range mails {
		if ctx.Err() != nil {
			return
		}
		if c.storeMail(ctx, mb, m) {
			stored++
		}
		percent := 30 + (i+1)*60/len(mails)
		progress(id, percent, fmt.Sprintf("processed %d/%d messages", i+1, len(mails)))
	}

	c.store.TouchMailboxChecked(ctx, id)
	c.logger.Info("mailbox checked", "address", mb.Address, "fetched", len(mails), "stored", stored)
	progress(id, 100, fmt.Sprintf("done, %d messages", stored))
}

// storeMail normalizes one fetched message and appends it as a mail record
func (c *Checker) storeMail(ctx context.Context, mb *models.Mailbox, m *fetchedMail) bool {
	content := m.BodyText
	if content == "" && m.BodyHTML != "" {
		text, err := c.parser.Parse(m.BodyHTML)
		if err != nil {
			c.logger.Warn("failed to parse HTML body", "error", err)
			text = m.BodyHTML
		}
		content = text
	}

	received := m.Received
	if received.IsZero() {
		received = time.Now()
	}

	return c.store.AddMailRecord(ctx, &models.MailRecord{
		MailboxID:  mb.ID,
		Subject:    m.Subject,
		Sender:     m.Sender,
		ReceivedAt: received,
		Content:    content,
		Folder:     m.Folder,
	})
}

package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fireflower/firemail/pkg/models"
)

// dispatch routes one inbound frame. Unknown actions and malformed frames
// get a structured error reply; the connection stays open either way.
func (s *Server) dispatch(ctx context.Context, c *client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Error("invalid message", "error", err)
		s.reply(c, errorReply("invalid message format, JSON expected"))
		return
	}

	s.logger.Info("websocket message received", "action", env.Action)

	switch env.Action {
	case ActionGetAllEmails:
		s.handleGetAllEmails(ctx, c)
	case ActionAddEmail:
		s.handleAddEmail(ctx, c, raw)
	case ActionDeleteEmails:
		s.handleDeleteEmails(ctx, c, raw)
	case ActionCheckEmails:
		s.handleCheckEmails(c, raw)
	case ActionGetMailRecords:
		s.handleGetMailRecords(ctx, c, raw)
	case ActionImportEmails:
		s.handleImportEmails(ctx, c, raw)
	case ActionSyncToWebDAV:
		if s.store.SyncToRemote(ctx) {
			s.reply(c, successReply("database synced to webdav"))
		} else {
			s.reply(c, errorReply("failed to sync database to webdav"))
		}
	case ActionSyncFromWebDAV:
		if s.store.SyncFromRemote(ctx) {
			s.reply(c, successReply("database synced from webdav"))
		} else {
			s.reply(c, errorReply("failed to sync database from webdav"))
		}
	default:
		s.reply(c, errorReply(fmt.Sprintf("unsupported action: %s", env.Action)))
	}
}

func (s *Server) reply(c *client, v any) {
	if err := c.send(v); err != nil {
		s.logger.Debug("failed to send reply", "error", err)
	}
}

func (s *Server) handleGetAllEmails(ctx context.Context, c *client) {
	boxes := s.store.Mailboxes(ctx)
	if boxes == nil {
		boxes = []*models.Mailbox{}
	}
	s.reply(c, emailsListReply{Type: TypeEmailsList, Data: boxes})
}

func (s *Server) handleAddEmail(ctx context.Context, c *client, raw []byte) {
	var req addEmailRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(c, errorReply("invalid add_email payload"))
		return
	}

	kind := req.Data.MailType
	if kind == "" {
		kind = "outlook"
	}

	ok := s.store.AddMailbox(ctx, &models.Mailbox{
		UserID:       req.Data.UserID,
		Address:      req.Data.Email,
		Password:     req.Data.Password,
		Kind:         kind,
		UseSSL:       true,
		ClientID:     req.Data.ClientID,
		RefreshToken: req.Data.RefreshToken,
	})
	if ok {
		s.reply(c, successReply(fmt.Sprintf("mailbox %s added", req.Data.Email)))
	} else {
		s.reply(c, errorReply(fmt.Sprintf("failed to add mailbox %s, it may already exist", req.Data.Email)))
	}
}

func (s *Server) handleDeleteEmails(ctx context.Context, c *client, raw []byte) {
	var req idListRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(c, errorReply("invalid delete_emails payload"))
		return
	}

	// Each delete stands alone; partial failure is fine
	deleted := 0
	for _, id := range req.EmailIDs {
		if s.store.DeleteMailbox(ctx, id) {
			deleted++
		}
	}

	s.reply(c, successReply(fmt.Sprintf("deleted %d mailboxes", deleted)))
}

// handleCheckEmails acknowledges the request, then runs the check without
// awaiting it. Progress goes to every live connection, not just the
// requester.
func (s *Server) handleCheckEmails(c *client, raw []byte) {
	var req idListRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(c, errorReply("invalid check_emails payload"))
		return
	}

	// Acknowledge before the check starts so the reply is ordered ahead of
	// every progress event
	s.reply(c, infoReply(fmt.Sprintf("started checking %d mailboxes", len(req.EmailIDs))))

	if s.check == nil {
		return
	}

	// Background context: a disconnecting requester must not cancel a check
	// other connections are watching
	go s.check(context.Background(), req.EmailIDs, func(mailboxID int64, percent int, message string) {
		s.hub.Broadcast(checkProgressEvent{
			Type:     TypeCheckProgress,
			EmailID:  mailboxID,
			Progress: percent,
			Message:  message,
		})
	})
}

func (s *Server) handleGetMailRecords(ctx context.Context, c *client, raw []byte) {
	var req mailRecordsRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.EmailID == 0 {
		s.reply(c, errorReply("email_id is required"))
		return
	}

	records := s.store.MailRecords(ctx, req.EmailID)
	if records == nil {
		records = []*models.MailRecord{}
	}
	s.reply(c, mailRecordsReply{Type: TypeMailRecords, EmailID: req.EmailID, Records: records})
}

func (s *Server) handleImportEmails(ctx context.Context, c *client, raw []byte) {
	var req importEmailsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(c, errorReply("invalid import_emails payload"))
		return
	}

	kind := req.Data.MailType
	if kind == "" {
		kind = "outlook"
	}

	result := s.importMailboxes(ctx, req.Data.UserID, kind, req.Data.Data)
	s.reply(c, result)
}

// importMailboxes adds one mailbox per well-formed line. Malformed lines
// are recorded as failures without aborting the batch; well-formed lines go
// through the same duplicate detection as add_email.
func (s *Server) importMailboxes(ctx context.Context, userID int64, kind, data string) importResultReply {
	lines := strings.Split(strings.TrimSpace(data), "\n")

	result := importResultReply{
		Type:          TypeImportResult,
		Total:         len(lines),
		FailedDetails: []importFailure{},
	}

	for _, line := range lines {
		parts := strings.Split(strings.TrimSpace(line), "----")
		if len(parts) < 2 {
			result.FailedDetails = append(result.FailedDetails, importFailure{
				Line:   line,
				Reason: "invalid format",
			})
			continue
		}

		mb := &models.Mailbox{
			UserID:   userID,
			Address:  strings.TrimSpace(parts[0]),
			Password: strings.TrimSpace(parts[1]),
			Kind:     kind,
			UseSSL:   true,
		}
		if len(parts) > 2 {
			mb.ClientID = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			mb.RefreshToken = strings.TrimSpace(parts[3])
		}

		if s.store.AddMailbox(ctx, mb) {
			result.Success++
		} else {
			result.FailedDetails = append(result.FailedDetails, importFailure{
				Email:  mb.Address,
				Reason: "add failed, mailbox may already exist",
			})
		}
	}

	result.Failed = result.Total - result.Success
	return result
}

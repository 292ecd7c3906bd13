package ws

import (
	"github.com/fireflower/firemail/pkg/models"
)

// Action names the operation an inbound frame requests. The set is closed:
// dispatch matches every action exhaustively and answers anything else with
// a structured error.
type Action string

const (
	ActionGetAllEmails   Action = "get_all_emails"
	ActionAddEmail       Action = "add_email"
	ActionDeleteEmails   Action = "delete_emails"
	ActionCheckEmails    Action = "check_emails"
	ActionGetMailRecords Action = "get_mail_records"
	ActionImportEmails   Action = "import_emails"
	ActionSyncToWebDAV   Action = "sync_to_webdav"
	ActionSyncFromWebDAV Action = "sync_from_webdav"
)

// Reply type tags.
const (
	TypeSuccess       = "success"
	TypeError         = "error"
	TypeInfo          = "info"
	TypeEmailsList    = "emails_list"
	TypeMailRecords   = "mail_records"
	TypeCheckProgress = "check_progress"
	TypeImportResult  = "import_result"
)

// envelope carries only the action tag; the full frame is decoded again
// into the matching request variant.
type envelope struct {
	Action Action `json:"action"`
}

// addEmailRequest carries the add_email fields
type addEmailRequest struct {
	Data struct {
		UserID       int64  `json:"user_id"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		MailType     string `json:"mail_type"`
		ClientID     string `json:"client_id"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
}

// idListRequest carries delete_emails and check_emails fields
type idListRequest struct {
	EmailIDs []int64 `json:"email_ids"`
}

// mailRecordsRequest carries the get_mail_records fields
type mailRecordsRequest struct {
	EmailID int64 `json:"email_id"`
}

// importEmailsRequest carries the import_emails fields
type importEmailsRequest struct {
	Data struct {
		UserID   int64  `json:"user_id"`
		MailType string `json:"mailType"`
		Data     string `json:"data"` // newline-delimited address----password[----clientId[----refreshToken]]
	} `json:"data"`
}

// statusReply answers success, error and info
type statusReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type emailsListReply struct {
	Type string            `json:"type"`
	Data []*models.Mailbox `json:"data"`
}

type mailRecordsReply struct {
	Type    string               `json:"type"`
	EmailID int64                `json:"email_id"`
	Records []*models.MailRecord `json:"records"`
}

// checkProgressEvent is broadcast to every live connection while a mail
// check runs
type checkProgressEvent struct {
	Type     string `json:"type"`
	EmailID  int64  `json:"email_id"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

type importFailure struct {
	Email  string `json:"email,omitempty"`
	Line   string `json:"line,omitempty"`
	Reason string `json:"reason"`
}

type importResultReply struct {
	Type          string          `json:"type"`
	Total         int             `json:"total"`
	Success       int             `json:"success"`
	Failed        int             `json:"failed"`
	FailedDetails []importFailure `json:"failed_details"`
}

func successReply(message string) statusReply {
	return statusReply{Type: TypeSuccess, Message: message}
}

func errorReply(message string) statusReply {
	return statusReply{Type: TypeError, Message: message}
}

func infoReply(message string) statusReply {
	return statusReply{Type: TypeInfo, Message: message}
}

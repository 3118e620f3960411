package audit

import (
	"context"

	"github.com/weiawesome/wes-chat/pkg/log"
)

// Audit actions for the chat core.
const (
	ActionJoin            = "chat.join"
	ActionDisconnect      = "chat.disconnect"
	ActionCreateGroup     = "chat.create_group"
	ActionSendMessage     = "chat.send_message"
	ActionEditMessage     = "chat.edit_message"
	ActionDeleteMessage   = "chat.delete_message"
	ActionCancelScheduled = "chat.cancel_scheduled"
	ActionAddAdmin        = "group.add_admin"
	ActionRemoveAdmin     = "group.remove_admin"
	ActionRenameGroup     = "group.rename"
	ActionUpdateMembers   = "group.update_members"
	ActionLeaveGroup      = "group.leave"
	ActionDeleteGroup     = "group.delete"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, username string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUsername, username).
		Msg(msg)
}

// LogTarget emits an audit log entry naming the entity acted upon.
func LogTarget(ctx context.Context, action string, username string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUsername, username).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

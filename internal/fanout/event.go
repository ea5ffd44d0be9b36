// ABOUTME: Event actions, channel names and the realtime wire envelope.
// ABOUTME: Maps actions to the webhook trigger names tenants register under.

package fanout

import "strconv"

// Action identifies what happened. The string values go out on the wire
// in the realtime envelope, so they are part of the client contract.
type Action string

const (
	ActionNewChat       Action = "new_chat"
	ActionEditChat      Action = "edit_chat"
	ActionDeleteChat    Action = "delete_chat"
	ActionIsTyping      Action = "is_typing"
	ActionAddPerson     Action = "add_person"
	ActionRemovePerson  Action = "remove_person"
	ActionNewMessage    Action = "new_message"
	ActionEditMessage   Action = "edit_message"
	ActionDeleteMessage Action = "delete_message"
	ActionNewUser       Action = "new_user"
	ActionEditUser      Action = "edit_user"
	ActionDeleteUser    Action = "delete_user"
)

// webhookTriggers maps actions to the trigger names tenants register
// webhooks under. Actions without an entry (typing, membership changes)
// never fire a webhook.
var webhookTriggers = map[Action]string{
	ActionNewChat:       "On New Chat",
	ActionEditChat:      "On Edit Chat",
	ActionDeleteChat:    "On Delete Chat",
	ActionNewMessage:    "On New Message",
	ActionEditMessage:   "On Edit Message",
	ActionDeleteMessage: "On Delete Message",
	ActionNewUser:       "On New User",
	ActionEditUser:      "On Edit User",
	ActionDeleteUser:    "On Delete User",
}

// TriggerFor returns the webhook trigger name for an action, or "" when
// the action has none.
func TriggerFor(action Action) string {
	return webhookTriggers[action]
}

// KnownTrigger reports whether name is a trigger some action fires.
func KnownTrigger(name string) bool {
	for _, t := range webhookTriggers {
		if t == name {
			return true
		}
	}
	return false
}

// PersonChannel is the realtime channel a person subscribes to.
func PersonChannel(personID int64) string {
	return "person:" + strconv.FormatInt(personID, 10)
}

// ChatChannel is the realtime channel carrying all of a chat's events.
func ChatChannel(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// envelopeType is the fixed frame type clients switch on.
const envelopeType = "dispatch_data"

// Envelope frames every realtime event.
type Envelope struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
	Data   any    `json:"data"`
}

// NewEnvelope wraps data in the standard frame.
func NewEnvelope(action Action, data any) *Envelope {
	return &Envelope{Type: envelopeType, Action: action, Data: data}
}

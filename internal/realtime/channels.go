// Package realtime implements the chat event fan-out: per-user broker
// channels, envelope framing, per-connection subscriptions, the push
// transport and TTL presence.
package realtime

import "fmt"

// Per-user channel categories. Channel names are the only coupling between
// the publish side and the delivery side.
const (
	CategoryMessages = "messages"
	CategoryTyping   = "typing"
	CategoryStatus   = "status"
)

// GlobalStatusChannel carries presence transitions of all users, for
// presence-overview streams.
const GlobalStatusChannel = "user:status:global"

// UserChannel returns the channel name for one user and category.
func UserChannel(userID, category string) string {
	return fmt.Sprintf("user:%s:%s", userID, category)
}

// MessagesChannel returns the user's incoming-message channel.
func MessagesChannel(userID string) string {
	return UserChannel(userID, CategoryMessages)
}

// TypingChannel returns the user's typing-indicator channel.
func TypingChannel(userID string) string {
	return UserChannel(userID, CategoryTyping)
}

// StatusChannel returns the user's presence-transition channel.
func StatusChannel(userID string) string {
	return UserChannel(userID, CategoryStatus)
}

// PresenceKey returns the TTL key marking a user online.
func PresenceKey(userID string) string {
	return fmt.Sprintf("user:%s:online", userID)
}

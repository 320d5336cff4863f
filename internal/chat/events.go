package chat

import "strings"

// Notification announces a presence change to all connections.
type Notification struct {
	Type string `json:"type"` // "join" or "leave"
	User string `json:"user"`
}

const (
	NotificationJoin  = "join"
	NotificationLeave = "leave"
)

// TypingSignal is the ephemeral typing indicator relayed to other
// connections. Best effort: duplicates and reordering are tolerated.
type TypingSignal struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// Delivery scope metadata. Every outbound pub/sub message carries a scope
// so the fan-out layer knows its target set: every connection, every
// connection except one, or an explicit set.
const (
	MetaScope   = "scope"
	MetaExclude = "exclude"
	MetaConns   = "conns"

	ScopeAll    = "all"
	ScopeExcept = "except"
	ScopeConns  = "conns"

	connListSeparator = ","
)

// ScopeAllMeta targets every connected session.
func ScopeAllMeta() map[string]string {
	return map[string]string{MetaScope: ScopeAll}
}

// ScopeExceptMeta targets every connected session but connID.
func ScopeExceptMeta(connID string) map[string]string {
	return map[string]string{MetaScope: ScopeExcept, MetaExclude: connID}
}

// ScopeConnsMeta targets exactly the given connection ids.
func ScopeConnsMeta(connIDs ...string) map[string]string {
	return map[string]string{
		MetaScope: ScopeConns,
		MetaConns: strings.Join(connIDs, connListSeparator),
	}
}

// SplitConnList parses the MetaConns value back into connection ids.
func SplitConnList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, connListSeparator)
}

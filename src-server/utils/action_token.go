package utils

import "strings"

// Custom IDs of the Accept/Deny buttons on a review prompt have the form
// "<action>:<applicant ID>". Applicant IDs must not contain the delimiter.
const ActionTokenDelimiter = ":"

const (
	ACTION_ACCEPT = "accept"
	ACTION_DENY   = "deny"
)

func EncodeActionToken(action, applicantID string) string {
	return action + ActionTokenDelimiter + applicantID
}

// Splits a custom ID into action and applicant ID. ok is false for
// anything that isn't an accept/deny token with a non-empty applicant ID.
func ParseActionToken(customID string) (action string, applicantID string, ok bool) {
	action, applicantID, found := strings.Cut(customID, ActionTokenDelimiter)
	if !found || applicantID == "" || strings.Contains(applicantID, ActionTokenDelimiter) {
		return "", "", false
	}
	switch action {
	case ACTION_ACCEPT, ACTION_DENY:
		return action, applicantID, true
	}
	return "", "", false
}

// The part of a custom ID used to route it to a component handler.
func CustomIDPrefix(customID string) string {
	prefix, _, _ := strings.Cut(customID, ActionTokenDelimiter)
	return prefix
}

// Package memory keeps per-session chat history and graph checkpoints.
package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// DefaultHistoryTurns is how many user/assistant turns are kept per session
const DefaultHistoryTurns = 15

var (
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidDocID     = errors.New("invalid document id")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	idPattern    = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)
)

// Session identifies one conversation of one user with one agent
type Session struct {
	Agent     string
	UserID    string
	SessionID string
}

// Validate checks the user and session ids
func (s Session) Validate() error {
	if err := ValidateUserID(s.UserID); err != nil {
		return err
	}
	return ValidateSessionID(s.SessionID)
}

// ValidateUserID requires an email address
func ValidateUserID(userID string) error {
	if !emailPattern.MatchString(userID) {
		return fmt.Errorf("%w: User ID %s is not in a valid format. User ID must be a valid email address. "+
			"Please include a valid cookie in the request headers called 'user-id'.", ErrInvalidUserID, userID)
	}
	return nil
}

// ValidateSessionID allows letters, digits, hyphens and underscores
func ValidateSessionID(sessionID string) error {
	if !idPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: Conversation session ID `%s` is not in a valid format. "+
			"Session ID must only contain alphanumeric characters, hyphens, and underscores.", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// ValidateDocID allows letters, digits, hyphens and underscores
func ValidateDocID(docID string) error {
	if !idPattern.MatchString(docID) {
		return fmt.Errorf("%w: Document ID `%s` is not in a valid format. "+
			"Document ID must only contain alphanumeric characters, hyphens, and underscores.", ErrInvalidDocID, docID)
	}
	return nil
}

// History stores the messages of a session
type History interface {
	AddMessages(ctx context.Context, s Session, messages ...interfaces.Message) error
	Messages(ctx context.Context, s Session) ([]interfaces.Message, error)
	Clear(ctx context.Context, s Session) error
}

func sessionKey(prefix string, s Session) string {
	return fmt.Sprintf("%s%s:%s:%s", prefix, strings.ToLower(s.Agent), s.UserID, s.SessionID)
}

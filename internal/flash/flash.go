// Package flash stores short-lived, one-shot notification messages in the
// user's session. Messages accumulate across redirects and are drained
// atomically on the next page render.
package flash

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2/middleware/session"
)

const sessionKey = "flash_messages"

// Severity tags for flash messages.
const (
	TypeSuccess = "success"
	TypeError   = "error"
)

// Message is a single flash entry.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Add appends a message to the session's flash list and persists the
// session.
func Add(sess *session.Session, msgType, text string) error {
	msgs := decode(sess.Get(sessionKey))
	msgs = append(msgs, Message{Type: msgType, Message: text})

	encoded, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	sess.Set(sessionKey, string(encoded))
	return sess.Save()
}

// Pop returns all pending messages and clears them in the same step.
func Pop(sess *session.Session) ([]Message, error) {
	msgs := decode(sess.Get(sessionKey))
	if len(msgs) == 0 {
		return []Message{}, nil
	}
	sess.Delete(sessionKey)
	if err := sess.Save(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func decode(raw interface{}) []Message {
	encoded, ok := raw.(string)
	if !ok || encoded == "" {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(encoded), &msgs); err != nil {
		return nil
	}
	return msgs
}

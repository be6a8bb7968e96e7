// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

// Values is the mapping shape of an invocation envelope. Fields other than
// the configured input and history keys pass through the invoker untouched.
type Values map[string]any

// Clone returns a shallow copy, so history injection never mutates the
// caller's envelope.
func (v Values) Clone() Values {
	cp := make(Values, len(v)+1)
	for k, val := range v {
		cp[k] = val
	}
	return cp
}

// inputMessages coerces an envelope value into the newest message sequence.
// Bare strings become user messages, matching NormalizeMessages.
func inputMessages(v any) []Message {
	return NormalizeMessages(v)
}

// outputMessages coerces a transform output into the messages to append.
// Unlike input coercion, a bare string is treated as an assistant reply.
func outputMessages(v any) []Message {
	switch out := v.(type) {
	case string:
		return []Message{NewAssistantMessage(out)}
	case *ChatResponse:
		if out == nil {
			return nil
		}
		return out.Messages
	case ChatResponse:
		return out.Messages
	default:
		return NormalizeMessages(v)
	}
}

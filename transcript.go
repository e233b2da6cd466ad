package chatgate

// Transcript is an ordered conversation history. When non-empty, element 0 is
// the pinned system preamble; it is never evicted by windowing.
type Transcript []Message

// WithUser appends a user turn. If the transcript is empty, the preamble is
// inserted as element 0 first.
func (t Transcript) WithUser(preamble, text string) Transcript {
	if len(t) == 0 {
		t = append(t, Message{Role: RoleSystem, Content: preamble})
	}
	return append(t, Message{Role: RoleUser, Content: text})
}

// WithAssistant appends an assistant turn.
func (t Transcript) WithAssistant(text string) Transcript {
	return append(t, Message{Role: RoleAssistant, Content: text})
}

// Window returns the context to send to a model: at most max messages,
// keeping element 0 plus the most recent max-1 entries. The result is never
// written back to storage; the stored transcript stays untruncated. A
// transcript of max messages or fewer is returned unchanged.
func (t Transcript) Window(max int) Transcript {
	if max <= 0 || len(t) <= max {
		return t
	}
	out := make(Transcript, 0, max)
	out = append(out, t[0])
	out = append(out, t[len(t)-(max-1):]...)
	return out
}

// Cleared drops everything but a fresh preamble.
func (t Transcript) Cleared(preamble string) Transcript {
	return Transcript{{Role: RoleSystem, Content: preamble}}
}

// Messages returns the transcript as a plain message slice.
func (t Transcript) Messages() []Message { return []Message(t) }

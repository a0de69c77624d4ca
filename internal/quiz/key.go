package quiz

import "strings"

// SyntheticQuestionID is the wire form of the single generated question a
// mental arithmetic quiz without stored questions presents.
const SyntheticQuestionID = "temp_mental_arithmetic"

// QuestionKey identifies a question inside an attempt: either a stored
// question row or the synthetic flash-card question.
type QuestionKey struct {
	id        string
	synthetic bool
}

var SyntheticKey = QuestionKey{synthetic: true}

func PersistedKey(id string) QuestionKey { return QuestionKey{id: id} }

// ParseQuestionKey converts a wire identifier. Only the transport layer and
// stores should need it.
func ParseQuestionKey(s string) QuestionKey {
	s = strings.TrimSpace(s)
	if s == SyntheticQuestionID {
		return SyntheticKey
	}
	return PersistedKey(s)
}

func (k QuestionKey) IsSynthetic() bool { return k.synthetic }

// ID is the stored question id; empty for the synthetic question.
func (k QuestionKey) ID() string { return k.id }

func (k QuestionKey) IsZero() bool { return !k.synthetic && k.id == "" }

func (k QuestionKey) String() string {
	if k.synthetic {
		return SyntheticQuestionID
	}
	return k.id
}

func (k QuestionKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *QuestionKey) UnmarshalText(b []byte) error {
	*k = ParseQuestionKey(string(b))
	return nil
}

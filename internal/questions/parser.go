// Package questions normalizes raw question-set input supplied by the
// hosting page. Anything unusable degrades to the built-in default set
// instead of an error.
package questions

import (
	"encoding/json"
	"strings"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

// rawQuestion tolerates missing fields; coercion happens in Parse.
type rawQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Default returns the single built-in fallback question.
func Default() []domain.Question {
	return []domain.Question{
		{Question: "Siapakah presiden pertama Indonesia?", Answer: "soekarno"},
	}
}

// Parse attempts a structural parse of a JSON array of {question, answer}
// objects. Both fields are trimmed, the answer lowercased, and entries left
// without either field are dropped. On any parse failure, a non-array
// document, or an empty result it returns nil ("no usable data").
func Parse(raw string) []domain.Question {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries []rawQuestion
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	out := make([]domain.Question, 0, len(entries))
	for _, e := range entries {
		q := strings.TrimSpace(e.Question)
		a := strings.ToLower(strings.TrimSpace(e.Answer))
		if q == "" || a == "" {
			continue
		}
		out = append(out, domain.Question{Question: q, Answer: a})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FromSources resolves the primary attribute and its legacy alias. The
// primary wins when both parse to non-empty sets; an unusable pair falls
// back to the default question.
func FromSources(primary, alias string) []domain.Question {
	if qs := Parse(primary); qs != nil {
		return qs
	}
	if qs := Parse(alias); qs != nil {
		return qs
	}
	return Default()
}

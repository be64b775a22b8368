package domain

import (
	"net/url"
	"strings"
)

// Phase is the explicit state of a quiz session. The session moves linearly
// IntroForm -> Answering -> Summary, with a single Restart transition back
// from Summary to IntroForm.
type Phase string

const (
	PhaseIntroForm Phase = "intro"
	PhaseAnswering Phase = "answering"
	PhaseSummary   Phase = "summary"
)

// Question is a single free-text question. Answer is stored trimmed and
// lowercased so submissions can be compared byte-for-byte.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionSet is a named, ordered collection of questions as stored in the
// backing question-set store. Order is significant: it defines navigation.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Identity is captured once via the intro form and attached to delivery
// events. Only Name is required.
type Identity struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Snapshot is the durable copy of a session, keyed by page path. The three
// array fields are required; a stored value missing any of them is treated
// as absent by loaders. Sparse positions are encoded as JSON nulls.
type Snapshot struct {
	Questions            []Question `json:"questions"`
	UserAnswers          []*string  `json:"userAnswers"`
	CorrectAnswers       []*bool    `json:"correctAnswers"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	ShowSummary          bool       `json:"showSummary"`
	Score                int        `json:"score"`
	Percentage           int        `json:"percentage"`
	SavedAt              int64      `json:"savedAt"`
	UserName             string     `json:"userName"`
	UserPhone            string     `json:"userPhone"`
	UserAddress          string     `json:"userAddress"`
}

// Valid reports whether the snapshot is structurally usable. Score and
// percentage are a cache only; the session recomputes them on restore.
func (s Snapshot) Valid() bool {
	return s.Questions != nil && s.UserAnswers != nil && s.CorrectAnswers != nil
}

// QuizResult is the scored outcome carried by events and written back into
// the site manifest.
type QuizResult struct {
	Score      int  `json:"score"`
	Percentage int  `json:"percentage"`
	Finished   bool `json:"finished"`
	Total      int  `json:"total,omitempty"`
}

// RemoteResult is a result record found in the site manifest. When present
// it is authoritative over any local state.
type RemoteResult struct {
	Score      int
	Percentage int
	Finished   bool
	Total      int
}

// EventKind distinguishes the two notifications a session emits.
type EventKind string

const (
	// EventResult fires after every answer check, correct or not.
	EventResult EventKind = "quiz-result"
	// EventFinished fires at most once per pass, when the session reaches Summary.
	EventFinished EventKind = "quiz-finished"
)

// ResultEvent is the broadcast payload observed by listeners such as the
// delivery sender. It is ephemeral: the emitter keeps nothing after dispatch.
type ResultEvent struct {
	Kind   EventKind  `json:"kind"`
	Slug   string     `json:"slug"`
	Result QuizResult `json:"result"`
	User   *Identity  `json:"user,omitempty"`
}

// SlugFromPath derives the page slug from a page path: the last non-empty
// path segment, URL-decoded, or "welcome" for the root.
func SlugFromPath(path string) string {
	p := strings.TrimRight(path, "/")
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "" {
			continue
		}
		if dec, err := url.PathUnescape(segs[i]); err == nil {
			return dec
		}
		return segs[i]
	}
	return "welcome"
}

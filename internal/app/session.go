package app

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/andyyulianto77/kuis3/internal/questions"
)

// User-visible correctness messages, carried over from the web widget.
const (
	msgCorrect      = "🎉 Benar! Jawaban Anda tepat. Selamat!"
	msgWrongFmt     = "❌ Salah. Jawaban yang benar adalah: %q"
	msgRevisitOK    = "✅ Jawaban Anda benar!"
	msgRevisitWrong = "❌ Jawaban yang benar: %q"
)

// Session is the in-memory state machine for one user's pass through a
// question set on a given page. All mutating methods reject calls made
// outside the phase they are valid in instead of panicking; the score is
// always recomputed from the correctness map, never stored.
type Session struct {
	path string
	slug string

	mu             sync.Mutex
	questions      []domain.Question
	idx            int
	userAnswers    []*string
	correctAnswers []*bool
	phase          domain.Phase
	identity       domain.Identity
	message        string
	isCorrect      bool
	locked         bool
	checked        bool
	remote         *domain.RemoteResult
	finishedSent   bool
	refs           int
	now            func() time.Time
}

// View is a read-only projection of session state for transports.
type View struct {
	Phase      domain.Phase `json:"phase"`
	Slug       string       `json:"slug"`
	Index      int          `json:"currentQuestionIndex"`
	Total      int          `json:"totalQuestions"`
	Question   string       `json:"question,omitempty"`
	Answer     string       `json:"answer,omitempty"`
	Message    string       `json:"message,omitempty"`
	IsCorrect  bool         `json:"isCorrect"`
	Checked    bool         `json:"isChecked"`
	Locked     bool         `json:"isDisabled"`
	Score      int          `json:"score"`
	Percentage int          `json:"percentage"`
	Remote     bool         `json:"externalLoaded"`
}

// CheckOutcome reports the result of a single answer check.
type CheckOutcome struct {
	Correct   bool
	Message   string
	Celebrate bool
	Result    domain.QuizResult
}

// AdvanceOutcome reports whether Advance finished the session. Result and
// Emit are meaningful only when Finished is true; Emit is false when the
// finished event was already delivered for this pass.
type AdvanceOutcome struct {
	Finished bool
	Emit     bool
	Result   domain.QuizResult
}

// NewSession creates a session in the IntroForm phase. An empty question
// set falls back to the built-in default so totals are never zero.
func NewSession(path string, qs []domain.Question) *Session {
	return NewSessionWithClock(path, qs, time.Now)
}

// NewSessionWithClock is test-only for deterministic snapshot timestamps.
func NewSessionWithClock(path string, qs []domain.Question, now func() time.Time) *Session {
	if len(qs) == 0 {
		qs = questions.Default()
	}
	s := &Session{
		path: path,
		slug: domain.SlugFromPath(path),
		now:  now,
	}
	s.questions = qs
	s.resetLocked()
	s.phase = domain.PhaseIntroForm
	return s
}

// Slug returns the page slug the session is keyed by.
func (s *Session) Slug() string { return s.slug }

// Identity returns the identity captured by the intro form.
func (s *Session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SubmitIntro records the user identity and starts answering at question 0.
// Only the name is required; prior answer state is cleared.
func (s *Session) SubmitIntro(id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseIntroForm {
		return domain.ErrInvalidTransition
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		return domain.ErrNameRequired
	}
	s.identity = domain.Identity{
		Name:    name,
		Phone:   strings.TrimSpace(id.Phone),
		Address: strings.TrimSpace(id.Address),
	}
	s.resetLocked()
	s.phase = domain.PhaseAnswering
	return nil
}

// CheckAnswer normalizes the input and scores it against the current
// question. Empty input counts as a concrete wrong answer. A correct answer
// locks the question until the user advances.
func (s *Session) CheckAnswer(raw string) (CheckOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseAnswering {
		return CheckOutcome{}, domain.ErrInvalidTransition
	}
	if s.locked {
		return CheckOutcome{}, domain.ErrAnswerLocked
	}

	answer := strings.ToLower(strings.TrimSpace(raw))
	s.userAnswers[s.idx] = &answer
	s.checked = true

	correct := answer == s.questions[s.idx].Answer
	s.isCorrect = correct
	s.correctAnswers[s.idx] = &correct
	if correct {
		s.message = msgCorrect
		s.locked = true
	} else {
		s.message = fmt.Sprintf(msgWrongFmt, s.questions[s.idx].Answer)
	}

	return CheckOutcome{
		Correct:   correct,
		Message:   s.message,
		Celebrate: correct,
		Result: domain.QuizResult{
			Score:      s.scoreLocked(),
			Percentage: s.percentageLocked(),
			Finished:   false,
		},
	}, nil
}

// Advance moves to the next question, or to Summary from the last one. It
// is gated on the current question having been checked at least once.
func (s *Session) Advance() (AdvanceOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseAnswering {
		return AdvanceOutcome{}, domain.ErrInvalidTransition
	}
	if s.correctAnswers[s.idx] == nil {
		return AdvanceOutcome{}, domain.ErrNotChecked
	}

	if s.idx < len(s.questions)-1 {
		s.idx++
		s.restoreIndexLocked(false)
		return AdvanceOutcome{}, nil
	}

	s.phase = domain.PhaseSummary
	s.locked = true
	out := AdvanceOutcome{
		Finished: true,
		Result: domain.QuizResult{
			Score:      s.scoreLocked(),
			Percentage: s.percentageLocked(),
			Finished:   true,
			Total:      len(s.questions),
		},
	}
	if !s.finishedSent {
		s.finishedSent = true
		out.Emit = true
	}
	return out, nil
}

// Retreat steps back one question and restores its recorded answer, lock
// state, and message. It is a pure view operation: no events, no writes.
func (s *Session) Retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseAnswering {
		return domain.ErrInvalidTransition
	}
	if s.idx == 0 {
		return domain.ErrAtFirstQuestion
	}
	s.idx--
	s.restoreIndexLocked(true)
	return nil
}

// Restart clears all answer state and any remote override, returning to the
// intro form. Identity fields are deliberately kept, matching the source
// widget (open question, see DESIGN.md).
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseSummary {
		return domain.ErrInvalidTransition
	}
	s.remote = nil
	s.resetLocked()
	s.phase = domain.PhaseIntroForm
	return nil
}

// ApplyRemote forces the session into Summary with the authoritative remote
// result. Remote wins over local state and is never merged.
func (s *Session) ApplyRemote(r domain.RemoteResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = &r
	s.phase = domain.PhaseSummary
	s.locked = true
	s.finishedSent = true
}

// Snapshot captures a serializable copy of the session for the durable
// store. Score and percentage are written as a cache only.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := domain.Snapshot{
		Questions:            append([]domain.Question(nil), s.questions...),
		UserAnswers:          append([]*string(nil), s.userAnswers...),
		CorrectAnswers:       append([]*bool(nil), s.correctAnswers...),
		CurrentQuestionIndex: s.idx,
		ShowSummary:          s.phase == domain.PhaseSummary,
		Score:                s.scoreLocked(),
		Percentage:           s.percentageLocked(),
		SavedAt:              s.now().UnixMilli(),
		UserName:             s.identity.Name,
		UserPhone:            s.identity.Phone,
		UserAddress:          s.identity.Address,
	}
	return snap
}

// Restore rebuilds the session from a persisted snapshot. A finished
// snapshot resumes in Summary; anything else resumes answering at the saved
// index with that question's message and lock state reconstructed.
// Structurally invalid snapshots are ignored.
func (s *Session) Restore(snap domain.Snapshot) {
	if !snap.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snap.Questions) > 0 {
		s.questions = snap.Questions
	}
	total := len(s.questions)
	s.userAnswers = fitAnswers(snap.UserAnswers, total)
	s.correctAnswers = fitCorrectness(snap.CorrectAnswers, total)
	s.idx = snap.CurrentQuestionIndex
	if s.idx < 0 {
		s.idx = 0
	}
	if s.idx > total-1 {
		s.idx = total - 1
	}
	s.identity = domain.Identity{Name: snap.UserName, Phone: snap.UserPhone, Address: snap.UserAddress}

	answered := 0
	checkedAll := 0
	for i := 0; i < total; i++ {
		if s.userAnswers[i] != nil {
			answered++
		}
		if s.correctAnswers[i] != nil {
			checkedAll++
		}
	}
	if snap.ShowSummary || (answered >= total && checkedAll >= total) {
		s.phase = domain.PhaseSummary
		s.locked = true
		s.finishedSent = true
		return
	}
	s.phase = domain.PhaseAnswering
	s.restoreIndexLocked(true)
}

// View projects the current state, preferring remote-override values when a
// reconciled result is present.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Phase:      s.phase,
		Slug:       s.slug,
		Index:      s.idx,
		Total:      len(s.questions),
		Message:    s.message,
		IsCorrect:  s.isCorrect,
		Checked:    s.checked,
		Locked:     s.locked,
		Score:      s.scoreLocked(),
		Percentage: s.percentageLocked(),
	}
	if s.phase == domain.PhaseAnswering {
		v.Question = s.questions[s.idx].Question
		if s.userAnswers[s.idx] != nil {
			v.Answer = *s.userAnswers[s.idx]
		}
	}
	if s.remote != nil {
		v.Remote = true
		v.Score = s.remote.Score
		v.Percentage = s.remote.Percentage
		if s.remote.Total > 0 {
			v.Total = s.remote.Total
		}
	}
	return v
}

// restoreIndexLocked recomputes the transient view state for the current
// index. When revisit is true the stored correctness message reappears,
// mirroring backward navigation in the widget.
func (s *Session) restoreIndexLocked(revisit bool) {
	s.message = ""
	s.isCorrect = false
	s.locked = false
	s.checked = s.userAnswers[s.idx] != nil
	if c := s.correctAnswers[s.idx]; c != nil {
		s.isCorrect = *c
		s.locked = *c
	}
	if revisit && s.userAnswers[s.idx] != nil {
		if s.isCorrect {
			s.message = msgRevisitOK
		} else {
			s.message = fmt.Sprintf(msgRevisitWrong, s.questions[s.idx].Answer)
		}
	}
}

func (s *Session) resetLocked() {
	s.idx = 0
	s.message = ""
	s.isCorrect = false
	s.locked = false
	s.checked = false
	s.userAnswers = make([]*string, len(s.questions))
	s.correctAnswers = make([]*bool, len(s.questions))
	s.finishedSent = false
}

func (s *Session) scoreLocked() int {
	score := 0
	for _, c := range s.correctAnswers {
		if c != nil && *c {
			score++
		}
	}
	return score
}

func (s *Session) percentageLocked() int {
	total := len(s.questions)
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.scoreLocked()) / float64(total) * 100))
}

func (s *Session) acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

func (s *Session) release() {
	s.mu.Lock()
	if s.refs > 0 {
		s.refs--
	}
	s.mu.Unlock()
}

// IsIdle reports whether no transport currently holds the session.
func (s *Session) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs == 0
}

func fitAnswers(in []*string, total int) []*string {
	out := make([]*string, total)
	copy(out, in)
	return out
}

func fitCorrectness(in []*bool, total int) []*bool {
	out := make([]*bool, total)
	copy(out, in)
	return out
}

package app

import (
	"context"
	"log"

	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/andyyulianto77/kuis3/internal/questions"
)

// SessionRepository abstracts how live sessions are held (in-memory, Redis-marked).
type SessionRepository interface {
	GetOrCreate(path string, create func() *Session) *Session
	Get(path string) (*Session, bool)
	DeleteIfIdle(path string)
}

// SnapshotStore is the durable page-path-keyed persistence slot. All three
// operations are best-effort from the service's perspective: errors are
// logged and swallowed, never surfaced to the user.
type SnapshotStore interface {
	Save(ctx context.Context, path string, snap domain.Snapshot) error
	Load(ctx context.Context, path string) (domain.Snapshot, bool, error)
	Clear(ctx context.Context, path string) error
}

// SetRepository loads question sets by slug (from cache/backing store).
type SetRepository interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ManifestClient reads and writes quiz results in the site manifest.
// FetchResult returns (nil, nil) when no matching record exists or the
// lookup is skipped for local environments.
type ManifestClient interface {
	FetchResult(ctx context.Context, slug string) (*domain.RemoteResult, error)
	WriteResult(ctx context.Context, slug string, result domain.QuizResult) error
}

// Celebrator is the injected confetti side effect fired on a correct answer.
type Celebrator interface {
	Fire(slug string)
}

// NopCelebrator ignores celebrations.
type NopCelebrator struct{}

func (NopCelebrator) Fire(string) {}

// AttachOptions configures session creation for a connecting client.
type AttachOptions struct {
	// RawQuestions is the primary JSON-array question attribute; RawAlias is
	// the legacy-compatible alias. Primary wins when both are usable.
	RawQuestions string
	RawAlias     string
	// Autoload restores a persisted snapshot for the page when true.
	Autoload bool
}

// QuizService wires the session state machine to persistence,
// reconciliation, and event delivery.
type QuizService struct {
	sessions  SessionRepository
	snapshots SnapshotStore
	sets      SetRepository
	manifest  ManifestClient
	celebrate Celebrator
	bus       *Bus
}

// NewQuizService builds the service. sets and manifest may be nil when the
// deployment has no question-set store or site manifest.
func NewQuizService(sessions SessionRepository, snapshots SnapshotStore, sets SetRepository, manifest ManifestClient) *QuizService {
	return &QuizService{
		sessions:  sessions,
		snapshots: snapshots,
		sets:      sets,
		manifest:  manifest,
		celebrate: NopCelebrator{},
		bus:       NewBus(),
	}
}

// SetCelebrator replaces the confetti hook. Nil restores the no-op.
func (s *QuizService) SetCelebrator(c Celebrator) {
	if c == nil {
		c = NopCelebrator{}
	}
	s.celebrate = c
}

// Subscribe exposes the result event bus to listeners such as the delivery
// sender. The caller must invoke cancel when done.
func (s *QuizService) Subscribe() (<-chan domain.ResultEvent, func()) {
	return s.bus.Subscribe()
}

// Attach returns the live session for a page path, creating it on first
// use. Creation resolves the question set, restores any persisted snapshot,
// and reconciles against the site manifest; a finished remote record wins
// over everything local.
func (s *QuizService) Attach(ctx context.Context, path string, opts AttachOptions) (*Session, error) {
	if sess, ok := s.sessions.Get(path); ok {
		sess.acquire()
		return sess, nil
	}

	slug := domain.SlugFromPath(path)
	qs := s.resolveQuestions(ctx, slug, opts)

	created := false
	sess := s.sessions.GetOrCreate(path, func() *Session {
		created = true
		return NewSession(path, qs)
	})
	sess.acquire()
	if !created {
		return sess, nil
	}

	if opts.Autoload {
		if snap, ok, err := s.snapshots.Load(ctx, path); err != nil {
			log.Printf("snapshot load for %s failed: %v", path, err)
		} else if ok {
			sess.Restore(snap)
		}
	}
	if s.manifest != nil {
		if remote, err := s.manifest.FetchResult(ctx, slug); err == nil && remote != nil {
			sess.ApplyRemote(*remote)
		}
	}
	return sess, nil
}

// Detach releases one transport's hold on the session and drops it once idle.
func (s *QuizService) Detach(path string) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return
	}
	sess.release()
	if sess.IsIdle() {
		s.sessions.DeleteIfIdle(path)
	}
}

// SubmitIntro records identity and starts answering, persisting a snapshot.
func (s *QuizService) SubmitIntro(ctx context.Context, path string, id domain.Identity) (View, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	if err := sess.SubmitIntro(id); err != nil {
		return View{}, err
	}
	s.persist(ctx, path, sess)
	return sess.View(), nil
}

// CheckAnswer scores the input, persists a snapshot, fires the confetti
// hook on success, publishes the incremental result event, and kicks off a
// best-effort manifest write-back. The event fires on every check, correct
// or not.
func (s *QuizService) CheckAnswer(ctx context.Context, path, raw string) (CheckOutcome, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return CheckOutcome{}, domain.ErrSessionNotFound
	}
	out, err := sess.CheckAnswer(raw)
	if err != nil {
		return CheckOutcome{}, err
	}
	s.persist(ctx, path, sess)
	if out.Celebrate {
		s.celebrate.Fire(sess.Slug())
	}
	s.bus.Publish(domain.ResultEvent{Kind: domain.EventResult, Slug: sess.Slug(), Result: out.Result})
	s.writeBack(sess.Slug(), out.Result)
	return out, nil
}

// Advance moves forward; finishing the last question reaches Summary,
// persists, and emits the terminal finished event at most once per pass.
func (s *QuizService) Advance(ctx context.Context, path string) (AdvanceOutcome, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return AdvanceOutcome{}, domain.ErrSessionNotFound
	}
	out, err := sess.Advance()
	if err != nil {
		return AdvanceOutcome{}, err
	}
	if out.Finished {
		s.persist(ctx, path, sess)
		if out.Emit {
			user := sess.Identity()
			s.bus.Publish(domain.ResultEvent{
				Kind:   domain.EventFinished,
				Slug:   sess.Slug(),
				Result: out.Result,
				User:   &user,
			})
			s.writeBack(sess.Slug(), out.Result)
		}
	}
	return out, nil
}

// Retreat is a pure view operation: nothing is persisted or emitted.
func (s *QuizService) Retreat(path string) (View, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	if err := sess.Retreat(); err != nil {
		return View{}, err
	}
	return sess.View(), nil
}

// Restart clears the persisted snapshot and remote override, returning the
// session to the intro form.
func (s *QuizService) Restart(ctx context.Context, path string) (View, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	if err := sess.Restart(); err != nil {
		return View{}, err
	}
	if err := s.snapshots.Clear(ctx, path); err != nil {
		log.Printf("snapshot clear for %s failed: %v", path, err)
	}
	return sess.View(), nil
}

// ViewOf returns the current projection for a page path.
func (s *QuizService) ViewOf(path string) (View, error) {
	sess, ok := s.sessions.Get(path)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	return sess.View(), nil
}

func (s *QuizService) resolveQuestions(ctx context.Context, slug string, opts AttachOptions) []domain.Question {
	if qs := questions.Parse(opts.RawQuestions); qs != nil {
		return qs
	}
	if qs := questions.Parse(opts.RawAlias); qs != nil {
		return qs
	}
	if s.sets != nil {
		if set, err := s.sets.GetSet(ctx, slug); err == nil && len(set.Questions) > 0 {
			return set.Questions
		}
	}
	return questions.Default()
}

func (s *QuizService) persist(ctx context.Context, path string, sess *Session) {
	if err := s.snapshots.Save(ctx, path, sess.Snapshot()); err != nil {
		log.Printf("snapshot save for %s failed: %v", path, err)
	}
}

// writeBack updates the manifest entry asynchronously. Failures are
// ignored; concurrent writers race with last-write-wins semantics.
func (s *QuizService) writeBack(slug string, result domain.QuizResult) {
	if s.manifest == nil {
		return
	}
	go func() {
		if err := s.manifest.WriteResult(context.Background(), slug, result); err != nil {
			log.Printf("manifest write-back for %s failed: %v", slug, err)
		}
	}()
}

package repository

import (
	"sync"

	"mockmaster/internal/domain"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // embedded sqlite driver
	"go.uber.org/zap"
)

// Store is the embedded Record Store: sqlite-backed persistence for
// QuestionRecords plus a change bus for reactive reads.
type Store struct {
	db       *sqlx.DB
	logger   *zap.Logger
	notifier *notifier
}

// Open connects to (or creates) the database file and brings the schema up
// to the current version. A migration failure aborts the open; the
// idempotent steps make a retry on next startup safe.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, domain.NewStorageError("failed to open database", err)
	}

	// sqlite allows a single writer; one pooled connection also keeps
	// :memory: databases coherent across calls.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Record store opened",
		zap.String("path", path),
		zap.Int("schema_version", CurrentSchemaVersion))

	return &Store{
		db:       db,
		logger:   logger,
		notifier: newNotifier(),
	}, nil
}

// Close shuts the change bus and the underlying database.
func (s *Store) Close() error {
	s.notifier.close()
	return s.db.Close()
}

// Subscribe registers a change listener. Events are delivered best-effort:
// a subscriber that falls behind its buffer misses events rather than
// blocking writers.
func (s *Store) Subscribe() (<-chan domain.ChangeEvent, func()) {
	return s.notifier.subscribe()
}

const subscriberBuffer = 32

// notifier publishes store mutations to subscribers. Shape follows the
// usual mutex-guarded registry; sends never block a mutation.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]chan domain.ChangeEvent
	nextID int
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan domain.ChangeEvent)}
}

func (n *notifier) subscribe() (<-chan domain.ChangeEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan domain.ChangeEvent, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

func (n *notifier) publish(event domain.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop rather than block the store.
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

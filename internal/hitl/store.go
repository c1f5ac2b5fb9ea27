package hitl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects request ids that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("request id must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("request id must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("request id contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// Decision is the state of a human-in-the-loop request.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Request is a single approval gate. It transitions exactly once from
// pending to a terminal decision and is never deleted afterwards.
type Request struct {
	ID            string     `json:"request_id"`
	CorrelationID string     `json:"correlation_id"`
	Reason        string     `json:"reason"`
	RequestedAt   time.Time  `json:"requested_at"`
	Decision      Decision   `json:"decision"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	Decider       string     `json:"decider,omitempty"`
	Escalated     bool       `json:"escalated,omitempty"`
	EscalatedAt   *time.Time `json:"escalated_at,omitempty"`
}

// Terminal reports whether the request has reached a final decision.
func (r *Request) Terminal() bool {
	return r.Decision == DecisionApproved || r.Decision == DecisionRejected
}

// Store manages request files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create hitl directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default request store directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "agentbus-hitl")
	}
	return filepath.Join(home, ".agentbus", "hitl")
}

// Create records a new pending request. If a request with the same id
// already exists it is returned unchanged.
func (s *Store) Create(id, correlationID, reason string) (*Request, error) {
	if err := validateKey(id); err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.read(id); err == nil {
		return existing, nil
	}

	r := &Request{
		ID:            id,
		CorrelationID: correlationID,
		Reason:        reason,
		RequestedAt:   time.Now().UTC(),
		Decision:      DecisionPending,
	}
	if err := s.writeAtomic(s.path(id), r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the request with the given id.
func (s *Store) Get(id string) (*Request, error) {
	if err := validateKey(id); err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(id)
	if err != nil {
		return nil, fmt.Errorf("request %q not found", id)
	}
	return r, nil
}

// Decide moves a pending request to a terminal decision. Deciding an
// already-terminal request is an error: the transition happens exactly
// once.
func (s *Store) Decide(id string, decision Decision, decider string) error {
	if err := validateKey(id); err != nil {
		return fmt.Errorf("invalid request id: %w", err)
	}
	if decision != DecisionApproved && decision != DecisionRejected {
		return fmt.Errorf("decision must be approved or rejected, got %q", decision)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(id)
	if err != nil {
		return fmt.Errorf("request %q not found: %w", id, err)
	}
	if r.Terminal() {
		return fmt.Errorf("request %q already decided: %s", id, r.Decision)
	}

	now := time.Now().UTC()
	r.Decision = decision
	r.DecidedAt = &now
	r.Decider = decider

	return s.writeAtomic(s.path(id), r)
}

// MarkEscalated flags a request as escalated. Escalation is advisory:
// the pending decision is left untouched.
func (s *Store) MarkEscalated(id string) error {
	if err := validateKey(id); err != nil {
		return fmt.Errorf("invalid request id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(id)
	if err != nil {
		return fmt.Errorf("request %q not found: %w", id, err)
	}
	if r.Escalated {
		return nil
	}

	now := time.Now().UTC()
	r.Escalated = true
	r.EscalatedAt = &now

	return s.writeAtomic(s.path(id), r)
}

// List returns all requests in the store.
func (s *Store) List() ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var requests []Request
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		r, err := s.read(id)
		if err != nil {
			continue
		}
		requests = append(requests, *r)
	}

	return requests, nil
}

// PendingCount returns the number of requests awaiting a decision.
func (s *Store) PendingCount() int {
	requests, err := s.List()
	if err != nil {
		return 0
	}
	n := 0
	for _, r := range requests {
		if r.Decision == DecisionPending {
			n++
		}
	}
	return n
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Request, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}

	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) writeAtomic(path string, r *Request) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

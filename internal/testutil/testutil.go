// Package testutil provides in-memory collaborators for package tests:
// a scripted prompter, a state store, a credential store and a provider.
package testutil

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// Prompter replays scripted answers. An exhausted script behaves like a
// dismissed prompt and returns ErrCancelled.
type Prompter struct {
	mu sync.Mutex

	Inputs   []string
	Picks    []int
	Confirms []bool

	// Rejected collects validation messages for inputs that were retried.
	Rejected []string
	Warnings []string
	Errors   []string
	Asked    []string
}

func (p *Prompter) ShowInput(_ context.Context, opts types.InputOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Asked = append(p.Asked, opts.Prompt)
	for len(p.Inputs) > 0 {
		v := p.Inputs[0]
		p.Inputs = p.Inputs[1:]
		if opts.Validate != nil {
			if msg := opts.Validate(v); msg != "" {
				p.Rejected = append(p.Rejected, msg)
				continue
			}
		}
		return v, nil
	}
	return "", types.ErrCancelled
}

func (p *Prompter) ShowPick(_ context.Context, prompt string, items []string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Asked = append(p.Asked, prompt)
	if len(p.Picks) == 0 {
		return 0, types.ErrCancelled
	}
	idx := p.Picks[0]
	p.Picks = p.Picks[1:]
	if idx < 0 || idx >= len(items) {
		return 0, types.ErrCancelled
	}
	return idx, nil
}

func (p *Prompter) ShowConfirm(_ context.Context, message, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Asked = append(p.Asked, message)
	if len(p.Confirms) == 0 {
		return false, nil
	}
	ok := p.Confirms[0]
	p.Confirms = p.Confirms[1:]
	return ok, nil
}

func (p *Prompter) ShowWarning(_ context.Context, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Warnings = append(p.Warnings, message)
}

func (p *Prompter) ShowError(_ context.Context, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors = append(p.Errors, message)
}

// WarningCount returns the number of warnings shown.
func (p *Prompter) WarningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Warnings)
}

// State is an in-memory StateStore. GetErr fails every Get and UpdateErr
// every Update.
type State struct {
	mu       sync.Mutex
	values   map[string]string
	attached bool

	GetErr    error
	UpdateErr error
	Updates   int
}

// NewState returns an attached State holding values.
func NewState(values map[string]string) *State {
	s := &State{values: make(map[string]string), attached: true}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *State) Attach(types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return types.ErrAlreadyAttached
	}
	s.attached = true
	return nil
}

func (s *State) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	return nil
}

func (s *State) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return "", false, types.ErrStoreDetached
	}
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *State) Update(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.values[key] = value
	s.Updates++
	return nil
}

// Value returns the raw value under key.
func (s *State) Value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Secrets is an in-memory CredentialStore. With Unavailable set it
// behaves like a host without a vault. Gate, when non-nil, blocks every
// GetSecret until it is closed.
type Secrets struct {
	mu      sync.Mutex
	entries map[string]string

	Unavailable bool
	Gate        chan struct{}
	Gets        int
	Sets        int
}

// NewSecrets returns an available, empty credential store.
func NewSecrets() *Secrets {
	return &Secrets{entries: make(map[string]string)}
}

func secretKey(service, key string) string { return service + "\x00" + key }

func (s *Secrets) Available() bool { return !s.Unavailable }

func (s *Secrets) SetSecret(_ context.Context, service, key, value string) error {
	if s.Unavailable {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[secretKey(service, key)] = value
	s.Sets++
	return nil
}

func (s *Secrets) GetSecret(ctx context.Context, service, key string) (string, bool, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.Unavailable {
		return "", false, nil
	}
	v, ok := s.entries[secretKey(service, key)]
	return v, ok, nil
}

func (s *Secrets) DeleteSecret(_ context.Context, service, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, secretKey(service, key))
	return nil
}

// Len returns the number of stored secrets.
func (s *Secrets) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// GetCount returns the number of GetSecret calls.
func (s *Secrets) GetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Gets
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account_test

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/auth"
)

// memStore is an in-memory account.Store. Records are copied in and out so
// the manager never shares memory with the store.
type memStore struct {
	mu    sync.Mutex
	users map[ulid.ULID]*account.User

	// failNext makes the next call to the named method return the error.
	failNext map[string]error

	// afterFindByEmail, when set, runs once after FindByEmail has read its
	// record, simulating a write that lands between a read and its Save.
	afterFindByEmail func()
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[ulid.ULID]*account.User),
		failNext: make(map[string]error),
	}
}

func clone(u *account.User) *account.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.PasswordSalt = append([]byte(nil), u.PasswordSalt...)
	return &c
}

func (s *memStore) injected(method string) error {
	err := s.failNext[method]
	delete(s.failNext, method)
	return err
}

func (s *memStore) find(match func(*account.User) bool) (*account.User, error) {
	for _, u := range s.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, account.ErrNotFound
}

func tokenIs(field *string, token string) bool {
	return field != nil && *field == token
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*account.User, error) {
	s.mu.Lock()
	if err := s.injected("FindByEmail"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	user, err := s.find(func(u *account.User) bool { return u.Email == email })
	hook := s.afterFindByEmail
	s.afterFindByEmail = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return user, err
}

func (s *memStore) FindByVerificationToken(_ context.Context, token string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *account.User) bool { return tokenIs(u.VerificationToken, token) })
}

func (s *memStore) FindByResetToken(_ context.Context, token string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("FindByResetToken"); err != nil {
		return nil, err
	}
	return s.find(func(u *account.User) bool { return tokenIs(u.ResetToken, token) })
}

func (s *memStore) FindByDeletionToken(_ context.Context, token string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *account.User) bool { return tokenIs(u.DeletionToken, token) })
}

func (s *memStore) Insert(_ context.Context, user *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Insert"); err != nil {
		return err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return account.ErrEmailTaken
		}
	}
	user.Version = 1
	s.users[user.ID] = clone(user)
	return nil
}

func (s *memStore) Save(_ context.Context, user *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Save"); err != nil {
		return err
	}
	stored, ok := s.users[user.ID]
	if !ok || stored.Version != user.Version {
		return account.ErrStale
	}
	user.Version++
	s.users[user.ID] = clone(user)
	return nil
}

func (s *memStore) Remove(_ context.Context, user *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return account.ErrNotFound
	}
	delete(s.users, user.ID)
	return nil
}

func (s *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ExistsByEmail"); err != nil {
		return false, err
	}
	_, err := s.find(func(u *account.User) bool { return u.Email == email })
	return err == nil, nil
}

func (s *memStore) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if !u.EmailVerified && u.HasLiveVerificationToken(token, now) {
			u.EmailVerified = true
			u.ClearVerificationToken()
			u.Version++
			return clone(u), nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *memStore) ConsumeResetToken(_ context.Context, token string, now time.Time, hash, salt []byte) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ConsumeResetToken"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.HasLiveResetToken(token, now) {
			u.PasswordHash = append([]byte(nil), hash...)
			u.PasswordSalt = append([]byte(nil), salt...)
			u.ClearResetToken()
			u.Version++
			return clone(u), nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *memStore) ConsumeDeletionToken(_ context.Context, token string, now time.Time) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.HasLiveDeletionToken(token, now) {
			delete(s.users, id)
			return clone(u), nil
		}
	}
	return nil, account.ErrNotFound
}

// get returns a copy of the stored record for email, or nil.
func (s *memStore) get(email string) *account.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.find(func(u *account.User) bool { return u.Email == email })
	if err != nil {
		return nil
	}
	return u
}

// put stores a record directly, bypassing the manager.
func (s *memStore) put(u *account.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = clone(u)
}

var _ account.Store = (*memStore)(nil)

// mockDispatcher records sends and returns configured errors.
type mockDispatcher struct {
	mock.Mock
}

func (d *mockDispatcher) SendVerification(ctx context.Context, email, token string) error {
	return d.Called(ctx, email, token).Error(0)
}

func (d *mockDispatcher) SendPasswordReset(ctx context.Context, email, token string) error {
	return d.Called(ctx, email, token).Error(0)
}

func (d *mockDispatcher) SendDeletionConfirmation(ctx context.Context, email, token string) error {
	return d.Called(ctx, email, token).Error(0)
}

func (d *mockDispatcher) SendDeletionCompletedNotice(ctx context.Context, email string) error {
	return d.Called(ctx, email).Error(0)
}

// lastToken returns the token argument of the most recent call to method.
func (d *mockDispatcher) lastToken(method string) string {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i].Method == method {
			return d.Calls[i].Arguments.String(2)
		}
	}
	return ""
}

var _ account.Dispatcher = (*mockDispatcher)(nil)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingTokens is a TokenIssuer that always fails.
type failingTokens struct{ err error }

func (f failingTokens) Issue(time.Duration) (auth.Token, error) {
	return auth.Token{}, f.err
}

package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"traintty/internal/store"
)

type fakeProvider struct {
	user    *User
	userErr error
	linkErr error

	// lastRedirect captures the callback URL handed to the provider so the
	// test can simulate the user clicking the link.
	lastRedirect string
}

func (f *fakeProvider) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	f.lastRedirect = redirectTo
	return f.linkErr
}

func (f *fakeProvider) GetUser(ctx context.Context, token string) (*User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSignedOutByDefault(t *testing.T) {
	m := New(&fakeProvider{}, newTestStore(t), nil)
	if m.CurrentUser() != nil {
		t.Error("fresh manager must be signed out")
	}
	if m.UserID() != "anonymous" {
		t.Errorf("UserID = %q, want anonymous", m.UserID())
	}
}

func TestRestoreFailsOpen(t *testing.T) {
	st := newTestStore(t)
	st.SetSetting(store.KeyAuthToken, "stale-token")

	m := New(&fakeProvider{userErr: errors.New("provider down")}, st, nil)
	if m.CurrentUser() != nil {
		t.Error("provider failure during restore must leave manager signed out")
	}
}

func TestRestoreFromPersistedToken(t *testing.T) {
	st := newTestStore(t)
	st.SetSetting(store.KeyAuthToken, "good-token")

	m := New(&fakeProvider{user: &User{ID: "u1", Email: "a@b.c"}}, st, nil)
	u := m.CurrentUser()
	if u == nil || u.ID != "u1" {
		t.Fatalf("restored user = %+v", u)
	}
}

func TestSignInWithMagicLink(t *testing.T) {
	st := newTestStore(t)
	fp := &fakeProvider{user: &User{ID: "u1", Email: "a@b.c"}}
	m := New(fp, st, nil)

	var notified *User
	m.Subscribe(func(u *User) { notified = u })

	// Simulate the user clicking the emailed link once the callback server
	// is up.
	go func() {
		for i := 0; i < 50; i++ {
			if fp.lastRedirect != "" {
				http.Get(fp.lastRedirect + "?access_token=tok-123")
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, err := m.SignInWithMagicLink(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("SignInWithMagicLink: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("user = %+v", u)
	}
	if notified == nil || notified.ID != "u1" {
		t.Errorf("subscriber not notified: %+v", notified)
	}

	tok, _ := st.GetSetting(store.KeyAuthToken)
	if tok != "tok-123" {
		t.Errorf("persisted token = %q", tok)
	}
	uid, _ := st.GetSetting(store.KeyUserID)
	if uid != "u1" {
		t.Errorf("persisted user id = %q", uid)
	}
}

func TestSignInTimesOut(t *testing.T) {
	m := New(&fakeProvider{user: &User{ID: "u1"}}, newTestStore(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := m.SignInWithMagicLink(ctx, "a@b.c"); err == nil {
		t.Error("want error when the link is never clicked")
	}
}

func TestSignOut(t *testing.T) {
	st := newTestStore(t)
	st.SetSetting(store.KeyAuthToken, "tok")
	m := New(&fakeProvider{user: &User{ID: "u1"}}, st, nil)

	var notified = &User{ID: "sentinel"}
	m.Subscribe(func(u *User) { notified = u })

	if err := m.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if m.CurrentUser() != nil {
		t.Error("still signed in after SignOut")
	}
	if notified != nil {
		t.Error("subscriber must see nil on sign-out")
	}
	if tok, _ := st.GetSetting(store.KeyAuthToken); tok != "" {
		t.Errorf("token survived sign-out: %q", tok)
	}
}

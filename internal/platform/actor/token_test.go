package actor

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenProvider_RoundTrip(t *testing.T) {
	p := NewTokenProvider(testSecret, "makerflow", "makerflow-api", time.Hour)

	token, err := p.Issue(Actor{ID: 42, Role: RoleStaff}, 7, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, orgID, err := p.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.ID != 42 {
		t.Errorf("ID = %d, want 42", got.ID)
	}
	if got.Role != RoleStaff {
		t.Errorf("Role = %q, want staff", got.Role)
	}
	if orgID != 7 {
		t.Errorf("orgID = %d, want 7", orgID)
	}
}

func TestTokenProvider_WrongSecret(t *testing.T) {
	p := NewTokenProvider(testSecret, "makerflow", "makerflow-api", time.Hour)
	other := NewTokenProvider("ffffffffffffffffffffffffffffffff", "makerflow", "makerflow-api", time.Hour)

	token, err := p.Issue(Actor{ID: 1, Role: RoleStudent}, 1, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := other.Parse(token); err != ErrInvalidToken {
		t.Errorf("Parse with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p := NewTokenProvider(testSecret, "makerflow", "makerflow-api", time.Minute)

	token, err := p.Issue(Actor{ID: 1, Role: RoleStudent}, 1, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := p.Parse(token); err != ErrInvalidToken {
		t.Errorf("Parse expired = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_WrongAudience(t *testing.T) {
	p := NewTokenProvider(testSecret, "makerflow", "makerflow-api", time.Hour)
	other := NewTokenProvider(testSecret, "makerflow", "other-api", time.Hour)

	token, err := p.Issue(Actor{ID: 1, Role: RoleManager}, 1, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := other.Parse(token); err != ErrInvalidToken {
		t.Errorf("Parse with wrong audience = %v, want ErrInvalidToken", err)
	}
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(t.Context(), Actor{ID: 9, Role: RoleManager})
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext should find the actor")
	}
	if got.ID != 9 || got.Role != RoleManager {
		t.Errorf("actor = %+v", got)
	}

	if _, ok := FromContext(t.Context()); ok {
		t.Error("FromContext on empty context should report absence")
	}
}

func TestActor_IDPtr(t *testing.T) {
	if System().IDPtr() != nil {
		t.Error("system actor should have a nil id pointer")
	}
	a := Actor{ID: 5, Role: RoleStaff}
	p := a.IDPtr()
	if p == nil || *p != 5 {
		t.Errorf("IDPtr = %v", p)
	}
}

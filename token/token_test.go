package token

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	key, err := RandomKey()
	if err != nil {
		t.Fatalf("RandomKey failed: %v", err)
	}
	return NewIssuer(key)
}

func TestIssueAndVerify(t *testing.T) {
	iss := testIssuer(t)
	room := uuid.New()
	player := uuid.New()

	tok, err := iss.Issue(room, player)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	gotRoom, gotPlayer, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if gotRoom != room {
		t.Errorf("Expected room %s, got %s", room, gotRoom)
	}
	if gotPlayer != player {
		t.Errorf("Expected player %s, got %s", player, gotPlayer)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	iss := testIssuer(t)
	tok, err := iss.Issue(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Flip a character inside the signed payload.
	parts := strings.SplitN(tok, ".", 2)
	payload := []byte(parts[0])
	if payload[3] == 'A' {
		payload[3] = 'B'
	} else {
		payload[3] = 'A'
	}
	if _, _, err := iss.Verify(string(payload) + "." + parts[1]); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for a tampered payload, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	tok, err := testIssuer(t).Issue(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, _, err := testIssuer(t).Verify(tok); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken under a different key, got %v", err)
	}
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	iss := testIssuer(t)
	tok, err := iss.Issue(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	bad := []string{
		"",
		"justonepart",
		tok + ".extra",
		"!!!." + strings.SplitN(tok, ".", 2)[1],
		strings.SplitN(tok, ".", 2)[0] + ".!!!",
	}
	for _, b := range bad {
		if _, _, err := iss.Verify(b); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", b, err)
		}
	}
}

func TestKeyFromHex(t *testing.T) {
	key, err := KeyFromHex(strings.Repeat("ab", KeySize))
	if err != nil {
		t.Fatalf("KeyFromHex failed: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("Expected a %d-byte key, got %d", KeySize, len(key))
	}

	if _, err := KeyFromHex("abcd"); err == nil {
		t.Error("Expected an error for a short key")
	}
	if _, err := KeyFromHex("not hex at all"); err == nil {
		t.Error("Expected an error for non-hex input")
	}
}

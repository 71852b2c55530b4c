package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newKeyPEM(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	priv, pub := newKeyPEM(t)
	issuer, err := NewIssuer(priv, pub, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestIssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Issue(Session{UserID: 42})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessExpiresIn != time.Minute || time.Until(pair.RefreshExpiresAt) <= 0 {
		t.Fatalf("unexpected lifetimes %+v", pair)
	}

	session, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil || session.UserID != 42 || session.MustChangePassword {
		t.Fatalf("verify access: %+v err=%v", session, err)
	}

	refresh, err := issuer.Parse(pair.RefreshToken, KindRefresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if refresh.ID == "" || refresh.Issuer != issuerName {
		t.Fatalf("unexpected refresh claims %+v", refresh)
	}

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.Parse(pair.AccessToken, KindRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	other := newTestIssuer(t)

	pair, err := other.Issue(Session{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed by another key must be rejected: %v", err)
	}

	pair, err = issuer.Issue(Session{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token must be rejected: %v", err)
	}

	if _, err := issuer.VerifyAccess(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token must be rejected")
	}
}

func TestAccessTokenCarriesPasswordChangeFlag(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Issue(Session{UserID: 5, MustChangePassword: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !pair.MustChangePassword {
		t.Fatalf("token pair lost the flag")
	}
	session, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil || !session.MustChangePassword {
		t.Fatalf("flag not carried in access token: %+v err=%v", session, err)
	}
}

func TestLoadIssuer(t *testing.T) {
	priv, pub := newKeyPEM(t)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "private.pem"), filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		t.Fatalf("write private: %v", err)
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		t.Fatalf("write public: %v", err)
	}

	if _, err := LoadIssuer(privPath, pubPath, time.Minute, time.Hour); err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if _, err := LoadIssuer(filepath.Join(dir, "missing.pem"), pubPath, time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for missing key file")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPasswordHash("correct horse", hash) || CheckPasswordHash("wrong", hash) {
		t.Fatalf("bcrypt comparison mismatch")
	}
}

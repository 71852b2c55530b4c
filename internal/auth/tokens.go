// Package auth 签发 RS256 会话令牌并管理账号。
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind 区分短期访问令牌与刷新令牌。
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const issuerName = "resumate"

// ErrInvalidToken 表示签名、过期或类型校验未通过。
var ErrInvalidToken = errors.New("invalid token")

// Claims 是令牌携带的会话字段。
type Claims struct {
	UserID             uint `json:"user_id"`
	Kind               Kind `json:"token_type"`
	MustChangePassword bool `json:"must_change_password,omitempty"`
	jwt.RegisteredClaims
}

// Session 是访问令牌解出的当前用户状态。
type Session struct {
	UserID             uint
	MustChangePassword bool
}

// TokenPair 是登录、刷新或改密成功后返回的令牌对。
type TokenPair struct {
	AccessToken        string
	RefreshToken       string
	AccessExpiresIn    time.Duration
	RefreshExpiresAt   time.Time
	MustChangePassword bool
}

// Issuer 用 RSA 密钥对签发并校验令牌。
type Issuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// LoadIssuer 从磁盘读取 PEM 密钥对。
func LoadIssuer(privateKeyPath, publicKeyPath string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewIssuer(privatePEM, publicPEM, accessTTL, refreshTTL)
}

// NewIssuer 解析 PEM 密钥对。
func NewIssuer(privatePEM, publicPEM []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return &Issuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (i *Issuer) sign(s Session, kind Kind, ttl time.Duration, jti string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		UserID:             s.UserID,
		Kind:               kind,
		MustChangePassword: s.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatUint(uint64(s.UserID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(i.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expires, nil
}

// Issue 为会话签发访问/刷新令牌对。只有刷新令牌带 jti，吊销以它为键。
func (i *Issuer) Issue(s Session) (TokenPair, error) {
	access, _, err := i.sign(s, KindAccess, i.accessTTL, "")
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExpires, err := i.sign(s, KindRefresh, i.refreshTTL, uuid.NewString())
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:        access,
		RefreshToken:       refresh,
		AccessExpiresIn:    i.accessTTL,
		RefreshExpiresAt:   refreshExpires,
		MustChangePassword: s.MustChangePassword,
	}, nil
}

// Parse 校验签名、签发方与过期时间，并要求令牌类型为 kind。
func (i *Issuer) Parse(tokenString string, kind Kind) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: want %s token", ErrInvalidToken, kind)
	}
	if kind == KindRefresh && claims.ID == "" {
		return nil, fmt.Errorf("%w: refresh token without jti", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyAccess 校验访问令牌并返回其中的会话。
func (i *Issuer) VerifyAccess(tokenString string) (Session, error) {
	claims, err := i.Parse(tokenString, KindAccess)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.UserID, MustChangePassword: claims.MustChangePassword}, nil
}

// RefreshTTL 返回刷新令牌的有效期。
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

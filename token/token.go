package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeySize HMAC-SHA256 密钥长度
const KeySize = 32

// ErrInvalidToken 签名不符、格式损坏或声明无法解析
var ErrInvalidToken = errors.New("invalid token")

// Claims 令牌负载：房间、玩家、签发时间
type Claims struct {
	Room     uuid.UUID `json:"room"`
	Player   uuid.UUID `json:"player"`
	IssuedAt int64     `json:"iat"`
}

// Issuer 签发并校验轻量级入房令牌。
// 令牌格式: base64url(json claims) + "." + base64url(hmac_sha256(json claims))
type Issuer struct {
	key []byte
}

// NewIssuer 用给定密钥构造签发器
func NewIssuer(key []byte) *Issuer {
	return &Issuer{key: key}
}

// Issue 为一名已入房的玩家签发令牌
func (i *Issuer) Issue(room, player uuid.UUID) (string, error) {
	payload, err := json.Marshal(Claims{Room: room, Player: player, IssuedAt: time.Now().Unix()})
	if err != nil {
		return "", err
	}
	sig := i.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify 校验令牌并还原房间与玩家。先验签后解析，
// 任何一步失败都归结为 ErrInvalidToken。
func (i *Issuer) Verify(tok string) (room, player uuid.UUID, err error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	if !hmac.Equal(sig, i.sign(payload)) {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	return c.Room, c.Player, nil
}

func (i *Issuer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, i.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// KeyFromHex 解析十六进制密钥，要求恰好32字节
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hmac key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("hmac key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// RandomKey 生成一把随机密钥（进程重启后旧令牌即失效）
func RandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate hmac key: %w", err)
	}
	return key, nil
}

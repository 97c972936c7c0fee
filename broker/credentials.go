package broker

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"papertrader/config"
)

// DefaultBroker 默认经纪商标识（Motilal Oswal，沿用原平台）。
const DefaultBroker = "motilal"

var (
	ErrNoCredentials = errors.New("broker credentials not configured")
	ErrDecrypt       = errors.New("broker credentials decryption failed")
)

// Credentials 经纪商 API 凭据。AuthToken/TOTPSecret 属于敏感字段，
// 落盘前整体加密。
type Credentials struct {
	APIKey     string `json:"api_key"`
	ClientCode string `json:"client_code"`
	AuthToken  string `json:"auth_token"`
	TOTPSecret string `json:"totp_secret,omitempty"`
}

// Status 本地凭据状态。不做任何外部认证调用：
// 真正的登录验证由排除在本核心之外的经纪商集成层负责。
type Status struct {
	Connected     bool      `json:"connected"`
	Message       string    `json:"message"`
	HasAuthToken  bool      `json:"has_auth_token"`
	HasTOTPSecret bool      `json:"has_totp_secret"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Service 凭据的加密存取。密钥用 argon2id 从口令派生，
// 密文格式: salt(16) || nonce(24) || secretbox(json)。
type Service struct {
	store      *config.Store
	passphrase []byte
}

func NewService(store *config.Store, passphrase string) *Service {
	return &Service{store: store, passphrase: []byte(passphrase)}
}

// Save 加密并持久化凭据。
func (s *Service) Save(broker string, creds Credentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	blob, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	return s.store.SaveBrokerBlob(broker, blob)
}

// Load 读取并解密凭据。
func (s *Service) Load(broker string) (*Credentials, time.Time, error) {
	blob, updatedAt, err := s.store.LoadBrokerBlob(broker)
	if errors.Is(err, config.ErrNotFound) {
		return nil, time.Time{}, ErrNoCredentials
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	plaintext, err := s.open(blob)
	if err != nil {
		return nil, time.Time{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, updatedAt, nil
}

// ConnectionStatus 报告凭据配置状态（只看本地，不发起网络请求）。
func (s *Service) ConnectionStatus(broker string) Status {
	creds, updatedAt, err := s.Load(broker)
	if err != nil {
		return Status{Connected: false, Message: "broker credentials not configured"}
	}
	if creds.AuthToken == "" {
		return Status{
			Connected:     false,
			Message:       "auth token missing, login via broker portal and update token",
			HasTOTPSecret: creds.TOTPSecret != "",
			UpdatedAt:     updatedAt,
		}
	}
	return Status{
		Connected:     true,
		Message:       "credentials stored locally",
		HasAuthToken:  true,
		HasTOTPSecret: creds.TOTPSecret != "",
		UpdatedAt:     updatedAt,
	}
}

// TOTPNow 用已存的秘钥生成当前时间窗的 OTP，
// 供需要 TOTP 登录的经纪商使用。
func (s *Service) TOTPNow(broker string) (string, error) {
	creds, _, err := s.Load(broker)
	if err != nil {
		return "", err
	}
	if creds.TOTPSecret == "" {
		return "", errors.New("totp secret not configured")
	}
	code, err := totp.GenerateCode(creds.TOTPSecret, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate totp: %w", err)
	}
	return code, nil
}

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

func (s *Service) deriveKey(salt []byte) *[keySize]byte {
	var key [keySize]byte
	derived := argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, keySize)
	copy(key[:], derived)
	return &key
}

func (s *Service) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, s.deriveKey(salt)), nil
}

func (s *Service) open(blob []byte) ([]byte, error) {
	if len(blob) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	salt := blob[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], blob[saltSize:saltSize+nonceSize])

	plaintext, ok := secretbox.Open(nil, blob[saltSize+nonceSize:], &nonce, s.deriveKey(salt))
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

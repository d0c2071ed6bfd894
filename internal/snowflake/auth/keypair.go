package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// KeyPairTokenProvider signs an RS256 assertion with the long-lived private
// key and exchanges it at the oauth token endpoint for a short-lived scoped
// token.  The scoped token is cached until its remaining lifetime drops
// below the refresh margin; concurrent refreshes collapse into one exchange
// call.
type KeyPairTokenProvider struct {
	signKey       *rsa.PrivateKey
	qualifiedUser string
	fingerprint   string
	tokenURL      string
	scope         string
	lifetime      time.Duration
	refreshMargin time.Duration

	exchangeClient *transport.Client
	refreshGroup   singleflight.Group
	nowFunc        func() time.Time

	mutex       sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func NewKeyPairTokenProvider(cfg *config.Config) (*KeyPairTokenProvider, error) {

	signBytes, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, &AuthError{Message: "unable to read private key file " + cfg.PrivateKeyFile, Err: err}
	}

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM(signBytes)
	if err != nil {
		return nil, &AuthError{Message: "unable to parse private key", Err: err}
	}

	fingerprint, err := publicKeyFingerprint(signKey)
	if err != nil {
		return nil, &AuthError{Message: "unable to fingerprint public key", Err: err}
	}

	qualifiedUser := strings.ToUpper(cfg.Account) + "." + strings.ToUpper(cfg.User)

	logger.Log.WithFields(logrus.Fields{"user": qualifiedUser}).Info("Key-pair credential initialized")

	return &KeyPairTokenProvider{
		signKey:        signKey,
		qualifiedUser:  qualifiedUser,
		fingerprint:    fingerprint,
		tokenURL:       cfg.ControlPlaneUrl + "/oauth/token",
		scope:          "session:role:" + strings.ToUpper(cfg.Role),
		lifetime:       cfg.TokenLifetime,
		refreshMargin:  cfg.TokenRefreshMargin,
		exchangeClient: transport.NewClient(cfg.HttpRequestTimeout, nil),
		nowFunc:        time.Now,
	}, nil
}

// publicKeyFingerprint derives the stable identity fingerprint used as part
// of the assertion issuer: the SHA256 hash of the DER encoded public key,
// uppercase hex, prefixed with "SHA256:".
func publicKeyFingerprint(signKey *rsa.PrivateKey) (string, error) {
	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&signKey.PublicKey)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(publicKeyBytes)
	return "SHA256:" + strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

func (p *KeyPairTokenProvider) GetToken(ctx context.Context) (string, error) {

	p.mutex.Lock()
	token := p.cachedToken
	expiry := p.tokenExpiry
	p.mutex.Unlock()

	if token != "" && p.nowFunc().Add(p.refreshMargin).Before(expiry) {
		return token, nil
	}

	return p.refresh(ctx)
}

func (p *KeyPairTokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	p.mutex.Lock()
	p.cachedToken = ""
	p.mutex.Unlock()

	return p.refresh(ctx)
}

func (p *KeyPairTokenProvider) refresh(ctx context.Context) (string, error) {

	token, err, _ := p.refreshGroup.Do("refresh", func() (interface{}, error) {
		return p.exchangeForScopedToken(ctx)
	})

	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (p *KeyPairTokenProvider) exchangeForScopedToken(ctx context.Context) (string, error) {

	assertion, err := p.signAssertion()
	if err != nil {
		return "", &AuthError{Message: "unable to sign assertion", Err: err}
	}

	logger.Log.Debug("Requesting scoped token from the authorization endpoint")

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)
	form.Set("scope", p.scope)

	respBody, err := p.exchangeClient.Do(ctx, http.MethodPost, p.tokenURL,
		"application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return "", &AuthError{Message: "token exchange failed", Err: err}
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResponse); err != nil {
		return "", &AuthError{Message: "unable to parse token exchange response", Err: err}
	}

	if tokenResponse.AccessToken == "" {
		return "", &AuthError{Message: "no access_token in token exchange response"}
	}

	lifetime := p.lifetime
	if tokenResponse.ExpiresIn > 0 {
		lifetime = time.Duration(tokenResponse.ExpiresIn) * time.Second
	}

	expiry := p.nowFunc().Add(lifetime)

	p.mutex.Lock()
	p.cachedToken = tokenResponse.AccessToken
	p.tokenExpiry = expiry
	p.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{"expiry": expiry}).Info("Scoped token obtained")

	return tokenResponse.AccessToken, nil
}

func (p *KeyPairTokenProvider) signAssertion() (string, error) {
	now := p.nowFunc()

	t := jwt.New(jwt.GetSigningMethod("RS256"))
	t.Claims = &jwt.StandardClaims{
		Issuer:    fmt.Sprintf("%s.%s", p.qualifiedUser, p.fingerprint),
		Subject:   p.qualifiedUser,
		IssuedAt:  now.UTC().Unix(),
		ExpiresAt: now.Add(p.lifetime).UTC().Unix(),
	}

	return t.SignedString(p.signKey)
}

package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/fx"

	"github.com/studygenius/billing/pkg/config"
)

var (
	ErrNotConfigured = errors.New("firebase project is not configured")
	ErrInvalidToken  = errors.New("invalid or expired authentication token")
)

const (
	issuerPrefix = "https://securetoken.google.com/"

	// minCertTTL bounds how often certificates are fetched when the response
	// carries no usable max-age.
	minCertTTL = time.Hour
	// unknownKidRefetch rate-limits refreshes triggered by a kid missing from
	// the cached set.
	unknownKidRefetch = time.Minute
)

// Token is a verified Firebase ID token.
type Token struct {
	UID   string
	Email string
}

type idTokenClaims struct {
	jwt.StandardClaims
	Email    string `json:"email"`
	AuthTime int64  `json:"auth_time"`
}

// Verifier checks Firebase ID tokens against Google's signing certificates.
type Verifier struct {
	projectID string
	certsURL  string
	client    *http.Client
	now       func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
	fetched time.Time
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{
		projectID: cfg.Firebase.ProjectID,
		certsURL:  cfg.Firebase.CertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
}

func (v *Verifier) Verify(ctx context.Context, idToken string) (*Token, error) {
	if v.projectID == "" {
		return nil, ErrNotConfigured
	}
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &idTokenClaims{}
	parser := &jwt.Parser{ValidMethods: []string{jwt.SigningMethodRS256.Alg()}, SkipClaimsValidation: true}
	_, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := v.validate(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Token{UID: claims.Subject, Email: claims.Email}, nil
}

func (v *Verifier) validate(c *idTokenClaims) error {
	now := v.now().Unix()
	if !c.VerifyExpiresAt(now, true) {
		return errors.New("token expired")
	}
	if !c.VerifyIssuedAt(now, true) {
		return errors.New("token issued in the future")
	}
	if c.AuthTime > now {
		return errors.New("auth_time in the future")
	}
	if !c.VerifyAudience(v.projectID, true) {
		return fmt.Errorf("unexpected audience %q", c.Audience)
	}
	if !c.VerifyIssuer(issuerPrefix+v.projectID, true) {
		return fmt.Errorf("unexpected issuer %q", c.Issuer)
	}
	if c.Subject == "" || len(c.Subject) > 128 {
		return errors.New("invalid subject")
	}
	return nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys == nil || !v.now().Before(v.expires) {
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
	}
	k, ok := v.keys[kid]
	if !ok && v.now().Sub(v.fetched) >= unknownKidRefetch {
		// Google may have rotated keys before our cached copy expired.
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
		k, ok = v.keys[kid]
	}
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return k, nil
}

// refresh downloads the PEM certificates and caches them for the response
// max-age, never less than minCertTTL.
func (v *Verifier) refresh(ctx context.Context) error {
	v.fetched = v.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certificates: status %d", resp.StatusCode)
	}
	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("parse certificate %s: %w", kid, err)
		}
		keys[kid] = k
	}
	v.keys = keys
	v.expires = v.now().Add(max(maxAge(resp.Header.Get("Cache-Control")), minCertTTL))
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if s, ok := strings.CutPrefix(part, "max-age="); ok {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return 0
}

var Module = fx.Options(
	fx.Provide(NewVerifier),
)

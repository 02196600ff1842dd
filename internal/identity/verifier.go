package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// Claims carries the verified facts extracted from a session credential.
type Claims struct {
	SubjectID id.SubjectID
	ExpiresAt time.Time
}

// CredentialVerifier checks a session credential's signature and expiry and
// extracts the subject. The credential authority itself (token issuance,
// password reset delivery) is an external collaborator.
type CredentialVerifier interface {
	Verify(credential string) (*Claims, error)
}

// JWTVerifier verifies HS256 session tokens issued by the credential authority.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTVerifier(signingKey, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

func (v *JWTVerifier) Verify(credential string) (*Claims, error) {
	if credential == "" {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "missing credential")
	}

	parsed, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithAudience(v.audience), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "credential has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid credential")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid credential claims")
	}

	subjectID, err := id.ParseSubjectID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid credential subject")
	}

	return &Claims{
		SubjectID: subjectID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

package server

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/inventory/internal/observability/context"
)

const (
	HeaderIdentity    = "x-rh-identity"
	contextAccountKey = "account"
)

type identityHeader struct {
	Identity struct {
		AccountNumber string `json:"account_number"`
	} `json:"identity"`
}

// IdentityRequired resolves the caller account from the base64 encoded
// identity header and scopes the request to it.
func IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := parseIdentity(c.GetHeader(HeaderIdentity))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextAccountKey, account)
		c.Request = c.Request.WithContext(obscontext.WithAccount(c.Request.Context(), account))
		c.Next()
	}
}

func parseIdentity(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrUnauthorized
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(header)
		if err != nil {
			return "", ErrUnauthorized
		}
	}

	var ident identityHeader
	if err := json.Unmarshal(raw, &ident); err != nil {
		return "", ErrUnauthorized
	}
	account := strings.TrimSpace(ident.Identity.AccountNumber)
	if account == "" {
		return "", ErrUnauthorized
	}
	return account, nil
}

func accountFrom(c *gin.Context) string {
	return c.GetString(contextAccountKey)
}

// EncodeIdentity builds an identity header value for the given account.
func EncodeIdentity(account string) string {
	var ident identityHeader
	ident.Identity.AccountNumber = account
	raw, _ := json.Marshal(ident)
	return base64.StdEncoding.EncodeToString(raw)
}

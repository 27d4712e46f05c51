package relay

import (
	"github.com/golang-jwt/jwt/v5"
)

// serverToken signs the long-lived server-to-server JWT the messaging API
// expects from backend clients.
func serverToken(apiSecret string) (string, error) {
	claims := jwt.MapClaims{
		"server": true,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(apiSecret))
}

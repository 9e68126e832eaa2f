package integration

import (
	"fmt"
	"strings"
	"time"
)

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// ExtractMagicLinkToken pulls the token query parameter out of a captured
// magic link email body
func ExtractMagicLinkToken(link string) string {
	idx := strings.Index(link, "token=")
	if idx < 0 {
		return ""
	}
	return link[idx+len("token="):]
}

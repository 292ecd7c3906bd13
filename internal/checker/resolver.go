package checker

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// IMAP endpoints for common providers
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"msn.com":        "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"yandex.ru":      "imap.yandex.ru:993",
	"yandex.com":     "imap.yandex.com:993",
	"mail.ru":        "imap.mail.ru:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"gmx.de":         "imap.gmx.net:993",
	"web.de":         "imap.web.de:993",
	"qq.com":         "imap.qq.com:993",
	"163.com":        "imap.163.com:993",
	"126.com":        "imap.126.com:993",
}

// resolveIMAPServer determines the IMAP endpoint for an address when the
// mailbox has no explicit server configured
func resolveIMAPServer(address string) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid email address %q", address)
	}
	domain := strings.ToLower(parts[1])

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Probe common host patterns
	for _, host := range []string{"imap." + domain, "mail." + domain} {
		if reachable(host, 993) {
			return host + ":993", nil
		}
	}

	// Last resort, let the connection attempt report the real error
	return "imap." + domain + ":993", nil
}

func reachable(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

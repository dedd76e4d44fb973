package shops

import "time"

// Shop is an installed store. At most one live credential per domain; a
// fresh OAuth completion overwrites the previous token.
type Shop struct {
	Domain           string // canonical shop domain (shop1.myshopify.com)
	AccessToken      string // plaintext in memory, encrypted at rest
	Scope            string // scopes granted at install
	Active           bool   // cleared by app/uninstalled, restored by re-auth
	InstalledAt      time.Time
	TokenRefreshedAt time.Time
}

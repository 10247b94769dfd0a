package airflow

import "encoding/base64"

// Credentials is the static username/password pair used against the Airflow API.
type Credentials struct {
	Username string
	Password string
}

// Token encodes the pair for an "Authorization: Basic" header. The second
// return value is false when no credentials are configured; callers still
// issue the upstream call, unauthenticated.
func (c Credentials) Token() (string, bool) {
	if c.Username == "" && c.Password == "" {
		return "", false
	}
	return base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password)), true
}

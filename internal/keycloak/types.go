package keycloak

// User is the identity provider's representation of an account.
type User struct {
	ID               string `json:"id"`
	CreatedTimestamp int64  `json:"createdTimestamp,omitempty"`
	Username         string `json:"username,omitempty"`
	Enabled          bool   `json:"enabled"`
	EmailVerified    bool   `json:"emailVerified"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Email            string `json:"email"`
}

// Credential is a single credential descriptor on a new account.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// NewUser is the creation payload for the user collection endpoint.
type NewUser struct {
	Email       string       `json:"email"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName"`
	Enabled     bool         `json:"enabled"`
	Credentials []Credential `json:"credentials"`
}

// Identity-provider action names accepted by the execute-actions-email
// endpoint.
const (
	actionVerifyEmail    = "VERIFY_EMAIL"
	actionUpdatePassword = "UPDATE_PASSWORD"
)

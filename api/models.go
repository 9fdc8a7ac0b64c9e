package api

// ErrorResponse is the JSON error envelope for all non-2xx responses.
type ErrorResponse struct {
	Code  string `json:"Code,omitempty"`
	Error string `json:"Error"`
}

// LoginRequest is the JSON body for POST /auth/login. UserID attaches the
// new session to an existing user; when empty a new user is created.
type LoginRequest struct {
	Name   string `json:"Name,omitempty"`
	Email  string `json:"Email,omitempty"`
	UserID string `json:"UserID,omitempty"`
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	UID          string `json:"UID"`
	LocalID      int    `json:"LocalID"`
	UserID       string `json:"UserID"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
}

// PushForkRequest is the JSON body for POST /auth/sessions/forks. Payload
// is ciphertext sealed under a key the backend never receives.
type PushForkRequest struct {
	Payload       string `json:"Payload,omitempty"`
	ChildClientID string `json:"ChildClientID"`
	Independent   int    `json:"Independent"`
}

// PushForkResponse is returned from POST /auth/sessions/forks.
type PushForkResponse struct {
	Selector string `json:"Selector"`
}

// PullForkResponse is returned from GET /auth/sessions/forks/{selector}.
type PullForkResponse struct {
	Payload      string `json:"Payload,omitempty"`
	LocalID      int    `json:"LocalID"`
	UID          string `json:"UID"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
	UserID       string `json:"UserID"`
}

// LocalKeyResponse is returned from GET /auth/sessions/local/key.
type LocalKeyResponse struct {
	ClientKey string `json:"ClientKey"`
}

// UserResponse is returned from GET /user.
type UserResponse struct {
	User UserModel `json:"User"`
}

// UserModel is the user object of the session's owner.
type UserModel struct {
	ID    string `json:"ID"`
	Name  string `json:"Name,omitempty"`
	Email string `json:"Email,omitempty"`
}

// SessionModel is one live session in GET /auth/sessions/local.
type SessionModel struct {
	UID     string `json:"UID"`
	LocalID int    `json:"LocalID"`
	UserID  string `json:"UserID"`
}

// LocalSessionsResponse is returned from GET /auth/sessions/local.
type LocalSessionsResponse struct {
	Sessions []SessionModel `json:"Sessions"`
}

// SetCookiesRequest is the JSON body for POST /auth/cookies.
type SetCookiesRequest struct {
	UID          string `json:"UID"`
	ResponseType string `json:"ResponseType"`
	GrantType    string `json:"GrantType"`
	RefreshToken string `json:"RefreshToken"`
	RedirectURI  string `json:"RedirectURI,omitempty"`
	Persistent   int    `json:"Persistent"`
	State        string `json:"State"`
}

// RevokeRequest is the JSON body for DELETE /auth.
type RevokeRequest struct {
	Child int `json:"Child"`
}

// OAuthForkRequest is the JSON body for POST /oauth/v1/fork.
type OAuthForkRequest struct {
	ClientID  string `json:"ClientID"`
	OaSession string `json:"OaSession,omitempty"`
}

// OAuthForkResponse is returned from POST /oauth/v1/fork.
type OAuthForkResponse struct {
	Data OAuthForkData `json:"Data"`
}

// OAuthForkData carries the redirect the client must navigate to.
type OAuthForkData struct {
	RedirectUri string `json:"RedirectUri"`
}

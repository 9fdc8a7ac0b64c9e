package fork

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmcleod/keyrelay/blob"
	"github.com/jmcleod/keyrelay/internal/util"
)

// Request parameter keys beyond the shared handoff keys.
const (
	keyApp       = "app"
	keyReturnURL = "return_url"
	keyEmail     = "email"
	keyPrompt    = "prompt"
)

// Pathname fragments the fork type is derived from when not explicit.
const (
	signupPathname = "/signup"
	switchPathname = "/switch"
)

// RequestOptions configures a fork request from the dependent application.
type RequestOptions struct {
	// App identifies the requesting application to the authorization
	// endpoint. Required.
	App string

	// LocalID targets a specific parent session; nil lets the endpoint pick.
	LocalID *int

	// Type is derived from Pathname when zero.
	Type Type

	// Pathname the user was heading to; drives type derivation and is
	// appended to the authorization URL path.
	Pathname string

	PayloadType    blob.PayloadType
	PayloadVersion int

	// ReturnURL is an unauthenticated-flow hint; it must be app-relative
	// (start with "/") or it is dropped.
	ReturnURL string

	// Email is a login hint; dropped when not a valid address.
	Email string

	// Prompt requests explicit re-authentication at the endpoint.
	Prompt string

	// CurrentURL is stored so the location can be restored after the round
	// trip.
	CurrentURL string

	// ReloadDocument asks the restored navigation to fully reload.
	ReloadDocument bool
}

// Request builds the navigation URL to the authorization endpoint and stores
// the matching fork state under a fresh random state token. The caller is
// responsible for the navigation itself; on the way back,
// StateStore.Take(state) recovers the stored location.
func Request(authURL string, states *StateStore, opts RequestOptions) (string, error) {
	if opts.App == "" {
		return "", fmt.Errorf("%w: requesting app is required", ErrInvalidProduce)
	}
	base, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing authorization URL: %v", ErrInvalidProduce, err)
	}

	state, err := util.RandomStateToken()
	if err != nil {
		return "", err
	}

	forkType := opts.Type
	if forkType == 0 {
		forkType = deriveType(opts.Pathname)
	}

	query := url.Values{}
	query.Set(keyApp, opts.App)
	query.Set(keyState, state)
	query.Set(keyVersion, strconv.Itoa(ProtocolVersion))
	if opts.LocalID != nil && *opts.LocalID >= 0 {
		query.Set(keyLocalID, strconv.Itoa(*opts.LocalID))
	}
	if forkType.valid() {
		query.Set(keyType, strconv.Itoa(int(forkType)))
	}
	if opts.PayloadType == blob.PayloadOffline {
		query.Set(keyPayloadType, string(blob.PayloadOffline))
	}
	if opts.PayloadVersion != 0 {
		query.Set(keyPayloadVersion, strconv.Itoa(opts.PayloadVersion))
	}
	if opts.Prompt != "" {
		query.Set(keyPrompt, opts.Prompt)
	}
	if strings.HasPrefix(opts.ReturnURL, "/") {
		query.Set(keyReturnURL, opts.ReturnURL)
	}
	if opts.Email != "" {
		if _, err := mail.ParseAddress(opts.Email); err == nil {
			query.Set(keyEmail, opts.Email)
		}
	}
	base.RawQuery = query.Encode()

	if err := states.Put(state, State{
		URL:            opts.CurrentURL,
		ReturnURL:      opts.ReturnURL,
		ReloadDocument: opts.ReloadDocument,
	}); err != nil {
		return "", fmt.Errorf("storing fork state: %w", err)
	}
	return base.String(), nil
}

func deriveType(pathname string) Type {
	switch {
	case strings.Contains(pathname, signupPathname):
		return TypeSignup
	case strings.Contains(pathname, switchPathname):
		return TypeSwitch
	default:
		return 0
	}
}

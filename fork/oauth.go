package fork

import (
	"context"
	"fmt"

	"github.com/jmcleod/keyrelay/client"
	"github.com/jmcleod/keyrelay/session"
)

// ProduceOAuthFork runs the OAuth-style fork: the backend itself prepares
// the handoff and answers with the redirect URI to navigate to. No
// client-side payload encryption is involved; the backend controls the
// entire payload.
func ProduceOAuthFork(ctx context.Context, api API, sess *session.ResumedSession, clientID, oaSession string) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("%w: oauth client id is required", ErrInvalidProduce)
	}
	redirect, err := api.OAuthFork(ctx, client.Auth{UID: sess.UID}, client.OAuthForkRequest{
		ClientID:  clientID,
		OaSession: oaSession,
	})
	if err != nil {
		return "", fmt.Errorf("producing oauth fork: %w", err)
	}
	if redirect == "" {
		return "", fmt.Errorf("%w: backend returned no redirect uri", ErrInvalidProduce)
	}
	return redirect, nil
}

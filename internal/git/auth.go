package git

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	appcfg "git.home.luguber.info/inful/docship/internal/config"
)

// authMethod maps source auth config onto a go-git transport method.
func authMethod(auth *appcfg.AuthConfig) (transport.AuthMethod, error) {
	if auth.IsZero() {
		return nil, nil
	}
	switch auth.Type {
	case appcfg.AuthTypeToken:
		return tokenAuth(auth.Token), nil
	case appcfg.AuthTypeBasic:
		return &githttp.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}

// tokenAuth builds the basic-auth shape forges expect for token pushes. The
// username is arbitrary; the token carries the identity. Returns nil for an
// empty token so local file remotes keep working in tests.
func tokenAuth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "docship", Password: token}
}

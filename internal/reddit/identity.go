package reddit

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/persona/internal/model"
)

// usernamePattern matches Reddit's username rules: 3-20 letters, digits, '_' or '-'
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// redditHosts are the hosts a profile URL may use
var redditHosts = map[string]bool{
	"reddit.com":     true,
	"www.reddit.com": true,
	"old.reddit.com": true,
	"new.reddit.com": true,
	"np.reddit.com":  true,
	"m.reddit.com":   true,
}

// ParseIdentity extracts a username from a reference. Accepted forms:
//
//	kojied
//	u/kojied, /u/kojied, /user/kojied/
//	https://www.reddit.com/user/kojied/ (also old., new., np., m. and /u/)
//
// Anything else is an input error.
func ParseIdentity(ref string) (string, error) {
	raw := strings.TrimSpace(ref)
	if raw == "" {
		return "", inputError(ref, "empty identity")
	}

	path := raw
	if strings.Contains(raw, "://") || strings.Contains(raw, "reddit.com") {
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return "", inputError(ref, fmt.Sprintf("invalid URL: %v", err))
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", inputError(ref, "unsupported URL scheme "+u.Scheme)
		}
		if !redditHosts[strings.ToLower(u.Host)] {
			return "", inputError(ref, "not a reddit.com URL")
		}
		path = u.Path
		if path == "" || path == "/" {
			return "", inputError(ref, "URL has no user path")
		}
	}

	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	var name string
	switch {
	case len(segments) == 1 && path == raw && !strings.HasPrefix(path, "/"):
		name = segments[0]
	case len(segments) >= 2 && (segments[0] == "u" || segments[0] == "user"):
		name = segments[1]
	default:
		return "", inputError(ref, "expected a username or a /user/<name> profile path")
	}

	if !usernamePattern.MatchString(name) {
		return "", inputError(ref, fmt.Sprintf("invalid username %q", name))
	}
	return name, nil
}

func inputError(ref, msg string) error {
	return model.NewError(model.KindInput, ref, errors.New(msg))
}

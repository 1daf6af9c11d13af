// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import "fmt"

// IsAuthorized decides whether the presented tokens may instantiate the
// template. It is pure and never panics:
//
//   - nil template or absent auth policy: denied
//   - method "open": allowed for any input, including no tokens at all
//   - method "token": allowed iff any presented token is in valid_tokens
//   - anything else: denied
//
// The legacy bare-string form `"auth": "open"` arrives here as Method "open"
// (see Auth.UnmarshalJSON) and is allowed like the structured form.
func IsAuthorized(tpl *Template, presentedTokens []string) bool {
	if tpl == nil {
		return false
	}

	switch tpl.Auth.Method {
	case AuthMethodOpen:
		return true
	case AuthMethodToken:
		for _, valid := range tpl.Auth.ValidTokens {
			for _, presented := range presentedTokens {
				if valid == presented {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// Authorize is the boundary wrapper around IsAuthorized. A clean denial is
// KindUnauthorized; any panic escaping the check (malformed caller input is
// a trust-boundary failure, not a server bug) is converted to
// KindAuthCheckFailed so the two conditions stay distinguishable in logs.
func Authorize(tpl *Template, presentedTokens []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Kind:    KindAuthCheckFailed,
				Message: "failed to authorize template",
				Err:     fmt.Errorf("authorization check panic: %v", r),
			}
		}
	}()

	if !IsAuthorized(tpl, presentedTokens) {
		return newError(KindUnauthorized, "unauthorized template instantiation")
	}
	return nil
}

// NormalizeTokens converts caller-supplied auth input (a single token string
// or a list of tokens, as decoded from JSON or query parameters) into a
// token slice. Any other shape is a KindAuthCheckFailed error.
func NormalizeTokens(presented interface{}) ([]string, error) {
	switch v := presented.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, newError(KindAuthCheckFailed, "failed to authorize template")
			}
			tokens = append(tokens, s)
		}
		return tokens, nil
	default:
		return nil, newError(KindAuthCheckFailed, "failed to authorize template")
	}
}

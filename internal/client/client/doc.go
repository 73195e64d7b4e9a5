// Package client is the docdash API client.
//
// # Overview
//
// HTTPClient implements the Client interface over the REST API. Each call
// goes through one pipeline:
//
//  1. the stored access token is attached as a bearer token;
//  2. a 401 hands the call to the refresh coordinator, which runs at most
//     one refresh exchange at a time and replays the call once with the new
//     token;
//  3. failures without a response and 5xx answers are retried with
//     exponential backoff (reads 3 times, mutations twice by default);
//  4. everything else is returned as an *APIError.
//
// # Errors
//
// APIError matches the sentinels ErrUnavailable, ErrUnauthorized,
// ErrNotFound, ErrConflict and ErrValidation through errors.Is. A failed
// refresh is reported as ErrSessionExpired to the refreshing call and to
// every call queued behind it; the credential store is cleared and the
// hook registered with OnSessionExpired runs. Once the store holds no
// refresh token, later 401s fail with ErrSessionExpired straight away and
// the hook does not run again. Tokens from an exchange that finished after
// a logout or a new login are dropped rather than stored.
package client

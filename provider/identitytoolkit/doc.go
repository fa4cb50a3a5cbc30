// Package identitytoolkit authenticates against an Identity Toolkit style REST
// API (accounts:signInWithPassword and accounts:signInWithIdp) and translates
// its error codes into authsession.ProviderError values.
package identitytoolkit

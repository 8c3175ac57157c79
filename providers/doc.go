// Package providers contains built-in provider adapters and the generic
// OAuth2 authorization-code implementation they share.
package providers

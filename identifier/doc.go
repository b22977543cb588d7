// Package identifier classifies login identifiers into usernames, email
// addresses, and phone numbers.
//
// Classification is a pure function: callers switch on the returned [Kind]
// instead of sniffing strings at every call site. Strict validators and log
// masking helpers live here as well so that all identifier shape rules are
// kept in one place.
package identifier

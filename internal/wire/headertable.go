// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

// headerTable is the frozen, compile-time static header-name table for
// protocol v2. Index order is part of the wire contract (spec.md §3,
// §6): new names may only ever be appended; existing indices must never
// change meaning or move. All names are canonical lowercase. The keys
// below are table positions; the v2 token for a name is its position plus
// one (host is token 1), and token 0 is reserved and never valid.
var headerTable = [...]string{
	0:  "host",
	1:  "connection",
	2:  "content-type",
	3:  "content-length",
	4:  "accept",
	5:  "accept-encoding",
	6:  "user-agent",
	7:  "cookie",
	8:  "set-cookie",
	9:  "authorization",
	10: "origin",
	11: "referer",
	12: "x-forwarded-for",
	13: "x-forwarded-host",
	14: "x-request-id",
	15: "if-none-match",
	16: "if-modified-since",
	17: "accept-language",
	18: "range",
	19: "content-range",
	20: "x-forwarded-proto",
	21: "upgrade",
	22: "transfer-encoding",
	23: "content-encoding",
	24: "location",
	25: "server",
	26: "date",
	27: "etag",
	28: "vary",
	29: "cache-control",
}

// headerTableIndex maps a canonical lowercase name back to its token, for
// encoding. Built once at init from headerTable so the two never drift.
var headerTableIndex = func() map[string]uint16 {
	m := make(map[string]uint16, len(headerTable))
	for i, name := range headerTable {
		m[name] = uint16(i) + 1
	}
	return m
}()

// staticHeaderToken returns the v2 token for name, and whether one
// exists. Lookup is O(1) by construction (decode side indexes an array;
// encode side indexes a map).
func staticHeaderToken(name string) (uint16, bool) {
	tok, ok := headerTableIndex[name]
	return tok, ok
}

// staticHeaderName returns the canonical name for token, and whether
// token is a valid table index.
func staticHeaderName(token uint16) (string, bool) {
	if token == 0 || int(token) > len(headerTable) {
		return "", false
	}
	return headerTable[token-1], true
}

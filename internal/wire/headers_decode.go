// Copyright (c) 2024 Kata Containers Contributors
//
// SPDX-License-Identifier: Apache-2.0
//

package wire

import "strings"

// headerEntry is a decoded header name/value as a pair of spans (or a
// static-table token in place of a name span). Resolving it to strings
// is deferred to the accessor methods on LazyRequestView/LazyResponseView.
type headerEntry struct {
	token     uint16 // literalToken if nameSpan applies instead
	nameSpan  span
	valueSpan span
}

func (h headerEntry) name(payload []byte) (string, error) {
	if h.token == literalToken {
		return h.nameSpan.str(payload), nil
	}
	name, ok := staticHeaderName(h.token)
	if !ok {
		return "", ErrBadTokenIndex
	}
	return name, nil
}

// decodeHeaders reads a header_count followed by that many entries. The
// preallocation is capped so a maliciously large declared count cannot
// force a huge allocation before the entries themselves are validated.
func decodeHeaders(c *cursor, version Version) ([]headerEntry, error) {
	count, err := c.u32()
	if err != nil {
		return nil, err
	}

	prealloc := count
	if prealloc > 64 {
		prealloc = 64
	}
	entries := make([]headerEntry, 0, prealloc)

	for i := uint32(0); i < count; i++ {
		var entry headerEntry

		if version == Version2 {
			tok, err := c.u16()
			if err != nil {
				return nil, err
			}
			if tok == literalToken {
				nameSpan, err := c.stringSpan()
				if err != nil {
					return nil, err
				}
				entry.token = literalToken
				entry.nameSpan = nameSpan
			} else {
				if _, ok := staticHeaderName(tok); !ok {
					return nil, ErrBadTokenIndex
				}
				entry.token = tok
			}
		} else {
			nameSpan, err := c.stringSpan()
			if err != nil {
				return nil, err
			}
			entry.token = literalToken
			entry.nameSpan = nameSpan
		}

		valueSpan, err := c.stringSpan()
		if err != nil {
			return nil, err
		}
		entry.valueSpan = valueSpan

		entries = append(entries, entry)
	}

	return entries, nil
}

// findHeader performs an ASCII-case-insensitive lookup, as spec.md §4.5
// requires of direct-mode header access.
func findHeader(payload []byte, entries []headerEntry, name string) (string, bool) {
	for _, e := range entries {
		n, err := e.name(payload)
		if err != nil {
			continue
		}
		if strings.EqualFold(n, name) {
			return e.valueSpan.str(payload), true
		}
	}
	return "", false
}

func materializeHeaders(payload []byte, entries []headerEntry) ([]HeaderField, error) {
	out := make([]HeaderField, 0, len(entries))
	for _, e := range entries {
		n, err := e.name(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, HeaderField{Name: n, Value: e.valueSpan.str(payload)})
	}
	return out, nil
}

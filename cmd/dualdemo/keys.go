package main

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/kungfusheep/dualview/component"
)

// decodeKeys turns raw terminal input into key names. Names follow the
// Bubble Tea spelling so components see the same keys under either host.
func decodeKeys(b []byte) []component.Key {
	var keys []component.Key
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0x1b:
			if i+2 < len(b) && b[i+1] == '[' {
				if k, ok := csiKeys[b[i+2]]; ok {
					keys = append(keys, k)
					i += 3
					continue
				}
			}
			keys = append(keys, "esc")
			i++
		case c == '\r' || c == '\n':
			keys = append(keys, "enter")
			i++
		case c == '\t':
			keys = append(keys, "tab")
			i++
		case c == 0x7f:
			keys = append(keys, "backspace")
			i++
		case c < 0x20:
			keys = append(keys, component.Key("ctrl+"+string(rune('a'+c-1))))
			i++
		default:
			r, n := utf8.DecodeRune(b[i:])
			keys = append(keys, component.Key(string(r)))
			i += n
		}
	}
	return keys
}

var csiKeys = map[byte]component.Key{
	'A': "up",
	'B': "down",
	'C': "right",
	'D': "left",
	'H': "home",
	'F': "end",
}

// readKeys forwards keys read from r until r fails or ctx is done.
func readKeys(ctx context.Context, r io.Reader, send func(component.Key)) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, k := range decodeKeys(buf[:n]) {
			send(k)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

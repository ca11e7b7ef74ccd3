// SPDX-License-Identifier: MIT

package instagram

import (
	"fmt"
	"math/big"
	"strings"
)

// alphabet is Instagram's URL-safe base64 digit set. Shortcodes are the
// media id written big-endian in this alphabet.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var digitValue = func() map[rune]int64 {
	m := make(map[rune]int64, len(alphabet))
	for i, r := range alphabet {
		m[r] = int64(i)
	}
	return m
}()

// ShortcodeToMediaID converts a post shortcode to its decimal media id.
// Media ids overflow int64 for recent posts, so the result stays a string.
func ShortcodeToMediaID(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty shortcode")
	}
	id := new(big.Int)
	base := big.NewInt(64)
	for _, r := range code {
		v, ok := digitValue[r]
		if !ok {
			return "", fmt.Errorf("shortcode %q has invalid digit %q", code, r)
		}
		id.Mul(id, base)
		id.Add(id, big.NewInt(v))
	}
	return id.String(), nil
}

// MediaIDToShortcode is the inverse of ShortcodeToMediaID. A trailing
// "_userid" portion, as found in API media ids, is ignored.
func MediaIDToShortcode(mediaID string) (string, error) {
	if i := strings.IndexByte(mediaID, '_'); i >= 0 {
		mediaID = mediaID[:i]
	}
	id, ok := new(big.Int).SetString(mediaID, 10)
	if !ok || id.Sign() < 0 {
		return "", fmt.Errorf("media id %q is not a decimal number", mediaID)
	}
	if id.Sign() == 0 {
		return string(alphabet[0]), nil
	}
	base := big.NewInt(64)
	mod := new(big.Int)
	var digits []byte
	for id.Sign() > 0 {
		id.DivMod(id, base, mod)
		digits = append(digits, alphabet[mod.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits), nil
}

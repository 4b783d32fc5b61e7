// Package magnet parses, validates and builds magnet URIs for the BitTorrent
// info-hash scheme (urn:btih), including normalization of the 32-character
// base32 hash form to 40-character hex.
package magnet

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const Scheme = "magnet:"

// ErrHashDegraded marks a 32-character hash that survived neither base32 nor
// hex decoding. The value is passed through unchanged, but it will never match
// a 40-character hex hash in later comparisons.
var ErrHashDegraded = errors.New("info-hash could not be normalized to 40-char hex")

var (
	hashPattern  = regexp.MustCompile(`urn:btih:([a-fA-F0-9]{40}|[a-zA-Z0-9]{32})`)
	validPattern = regexp.MustCompile(`^magnet:\?xt=urn:btih:([a-fA-F0-9]{40}|[a-zA-Z0-9]{32})`)
)

// Trackers announced in every magnet URI this service builds, in fixed order.
var defaultTrackers = []string{
	"udp://tracker.openbittorrent.com:80",
	"udp://open.demonii.com:1337",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://exodus.desync.com:6969",
}

// IsValid reports whether raw looks like a magnet URI: it must carry the
// magnet scheme and an extractable btih hash. Both checks are required.
func IsValid(raw string) bool {
	return strings.HasPrefix(raw, Scheme) && validPattern.MatchString(raw)
}

// ExtractHash pulls the info-hash out of a magnet URI. 40-character hex hashes
// are returned verbatim; 32-character values go through Normalize. The second
// return is false when the URI carries no recognizable hash.
func ExtractHash(raw string) (string, bool) {
	match := hashPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	hash := match[1]
	if len(hash) != 32 {
		return hash, true
	}
	normalized, _ := Normalize(hash)
	return normalized, true
}

// Normalize converts a 32-character hash to 40-character lowercase hex.
// Three attempts, each catching failure of the previous: base32 decode
// (padded with '=' to a multiple of 8), then a raw hex round-trip, then the
// input unchanged together with ErrHashDegraded.
func Normalize(hash string) (string, error) {
	if len(hash) != 32 {
		return hash, nil
	}

	padded := strings.ToUpper(hash)
	if rem := len(padded) % 8; rem != 0 {
		padded += strings.Repeat("=", 8-rem)
	}
	if decoded, err := base32.StdEncoding.DecodeString(padded); err == nil {
		return hex.EncodeToString(decoded), nil
	}

	if decoded, err := hex.DecodeString(hash); err == nil {
		return hex.EncodeToString(decoded), nil
	}

	return hash, ErrHashDegraded
}

// Build constructs a magnet URI from an info-hash and a display name, with the
// fixed tracker list appended.
func Build(infoHash, name string) string {
	var builder strings.Builder
	builder.WriteString("magnet:?xt=urn:btih:")
	builder.WriteString(infoHash)
	builder.WriteString("&dn=")
	builder.WriteString(url.QueryEscape(name))
	for _, tracker := range defaultTrackers {
		builder.WriteString("&tr=")
		builder.WriteString(url.QueryEscape(tracker))
	}
	return builder.String()
}

// Info is the metadata recoverable from a magnet URI without a torrent file.
type Info struct {
	Hash     string
	Name     string
	Trackers []string
}

var (
	dnPattern = regexp.MustCompile(`dn=([^&]+)`)
	trPattern = regexp.MustCompile(`tr=([^&]+)`)
)

// Parse extracts hash, display name and tracker list from a magnet URI.
func Parse(raw string) Info {
	info := Info{}
	if hash, ok := ExtractHash(raw); ok {
		info.Hash = hash
	}
	if match := dnPattern.FindStringSubmatch(raw); match != nil {
		name := strings.ReplaceAll(match[1], "+", " ")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		info.Name = name
	}
	for _, match := range trPattern.FindAllStringSubmatch(raw, -1) {
		tracker := match[1]
		if unescaped, err := url.QueryUnescape(tracker); err == nil {
			tracker = unescaped
		}
		info.Trackers = append(info.Trackers, tracker)
	}
	return info
}

package http

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"
)

// DigestAuth holds one Digest challenge and the credentials answering it.
type DigestAuth struct {
	Username  string
	Password  string
	Realm     string
	Nonce     string
	URI       string
	Qop       string
	Nc        string
	Cnonce    string
	Opaque    string
	Method    string
	Algorithm string
}

// ParseWWWAuthenticate splits a Digest challenge into its parameters.
// Quoted values may contain commas.
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "Digest ") {
		header = header[7:]
	}

	for header != "" {
		header = strings.TrimLeft(header, " ,")
		eq := strings.IndexByte(header, '=')
		if eq < 0 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(header[:eq]))
		header = strings.TrimLeft(header[eq+1:], " ")

		var value string
		if strings.HasPrefix(header, `"`) {
			end := 1
			for end < len(header) && header[end] != '"' {
				if header[end] == '\\' {
					end++
				}
				end++
			}
			if end > len(header) {
				end = len(header)
			}
			value = strings.ReplaceAll(header[1:end], `\"`, `"`)
			if end < len(header) {
				end++
			}
			header = header[end:]
		} else {
			comma := strings.IndexByte(header, ',')
			if comma < 0 {
				comma = len(header)
			}
			value = strings.TrimSpace(header[:comma])
			header = header[comma:]
		}
		if key != "" {
			result[key] = value
		}
	}
	return result
}

func (d *DigestAuth) hasher() func() hash.Hash {
	if strings.HasPrefix(strings.ToUpper(d.Algorithm), "SHA-256") {
		return sha256.New
	}
	return md5.New
}

func (d *DigestAuth) digest(s string) string {
	h := d.hasher()()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeDigestResponse returns the response hash for the challenge.
func (d *DigestAuth) ComputeDigestResponse() string {
	ha1 := d.digest(d.Username + ":" + d.Realm + ":" + d.Password)
	if strings.HasSuffix(strings.ToLower(d.Algorithm), "-sess") {
		ha1 = d.digest(ha1 + ":" + d.Nonce + ":" + d.Cnonce)
	}
	ha2 := d.digest(d.Method + ":" + d.URI)

	if d.Qop == "auth" || d.Qop == "auth-int" {
		return d.digest(strings.Join([]string{ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2}, ":"))
	}
	return d.digest(ha1 + ":" + d.Nonce + ":" + ha2)
}

// BuildAuthorizationHeader renders the Authorization header value.
func (d *DigestAuth) BuildAuthorizationHeader() string {
	parts := []string{
		`username="` + d.Username + `"`,
		`realm="` + d.Realm + `"`,
		`nonce="` + d.Nonce + `"`,
		`uri="` + d.URI + `"`,
		`response="` + d.ComputeDigestResponse() + `"`,
	}
	if d.Algorithm != "" {
		parts = append(parts, "algorithm="+d.Algorithm)
	}
	if d.Qop != "" {
		parts = append(parts, "qop="+d.Qop, "nc="+d.Nc, `cnonce="`+d.Cnonce+`"`)
	}
	if d.Opaque != "" {
		parts = append(parts, `opaque="`+d.Opaque+`"`)
	}
	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce returns a random client nonce.
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

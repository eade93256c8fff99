// Package jwtclaims decodes the payload of a compact three-segment token without
// verifying its signature. Trust is delegated to the issuing backend and transport.
package jwtclaims

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/ports"
)

// ErrMalformedToken is returned for any token whose structure or payload cannot be read.
var ErrMalformedToken = errors.New("malformed token")

var _ ports.TokenDecoder = (*Codec)(nil)

// Codec implements ports.TokenDecoder.
type Codec struct {
	parser *jwt.Parser
}

// New returns a Codec that accepts padded and unpadded payload segments.
func New() *Codec {
	return &Codec{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

// Decode splits raw into header.payload.signature and reads the payload as a claim set.
func (c *Codec) Decode(raw string) (domainauth.ClaimSet, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	// Accept the standard alphabet too; DecodeSegment only understands the URL-safe one.
	seg := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	payload, err := c.parser.DecodeSegment(seg)
	if err != nil {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: payload encoding: %w", ErrMalformedToken, err)
	}

	if !utf8.Valid(payload) {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: payload is not UTF-8", ErrMalformedToken)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: payload json: %w", ErrMalformedToken, err)
	}
	if fields == nil {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: payload is not an object", ErrMalformedToken)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: trailing data after payload", ErrMalformedToken)
	}

	// Only roles may arrive as a single value; any other authorities shape is ignored.
	if a, ok := fields[authoritiesKey]; ok {
		if _, isList := a.([]any); !isList {
			delete(fields, authoritiesKey)
		}
	}

	var claims domainauth.ClaimSet
	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(claimValueHook, epochHook),
		WeaklyTypedInput: true,
		MatchName:        exactName,
		Result:           &claims,
	})
	if err != nil {
		return domainauth.ClaimSet{}, fmt.Errorf("build claim decoder: %w", err)
	}
	if err := md.Decode(fields); err != nil {
		return domainauth.ClaimSet{}, fmt.Errorf("%w: claims: %w", ErrMalformedToken, err)
	}
	return claims, nil
}

const authoritiesKey = "authorities"

// exactName matches claim keys case-sensitively; "Role" is not "role".
func exactName(mapKey, fieldName string) bool { return mapKey == fieldName }

var (
	claimValueType = reflect.TypeOf(domainauth.ClaimValue{})
	int64Type      = reflect.TypeOf(int64(0))
)

// claimValueHook turns any JSON shape into the ClaimValue tagged union.
func claimValueHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != claimValueType {
		return data, nil
	}
	return ExtractClaim(data), nil
}

// epochHook truncates fractional epoch numbers instead of rejecting them.
// Numbers that do not fit in an int64 are errors.
func epochHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != int64Type {
		return data, nil
	}
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("number %s out of range", n.String())
	}
	return int64(f), nil
}

// recordField is the conventional field name for authority records.
const recordField = "authority"

// ExtractClaim classifies a single decoded JSON value. Strings are string claims;
// objects carrying a string under "authority", or with exactly one string field, are
// record claims; everything else is absent.
func ExtractClaim(v any) domainauth.ClaimValue {
	switch t := v.(type) {
	case string:
		return domainauth.StringClaim(t)
	case map[string]any:
		if s, ok := t[recordField].(string); ok {
			return domainauth.RecordClaim(s)
		}
		if len(t) == 1 {
			for _, fv := range t {
				if s, ok := fv.(string); ok {
					return domainauth.RecordClaim(s)
				}
			}
		}
	}
	return domainauth.ClaimValue{}
}

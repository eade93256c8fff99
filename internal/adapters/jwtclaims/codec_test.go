package jwtclaims

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-portal/internal/domain/auth"
	"github.com/target/mmk-portal/internal/testutil"
)

func TestDecode_SignedToken(t *testing.T) {
	raw := testutil.NewToken("alice").
		WithAuthorityRecords("ROLE_ADMIN").
		WithRoles("student").
		WithRole("trainer").
		Build()

	claims, err := New().Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "alice", claims.UserID())
	assert.Equal(t, []domainauth.ClaimValue{domainauth.RecordClaim("ROLE_ADMIN")}, claims.Authorities)
	assert.Equal(t, []domainauth.ClaimValue{domainauth.StringClaim("student")}, claims.Roles)
	assert.Equal(t, domainauth.StringClaim("trainer"), claims.Role)
	assert.Equal(t, testutil.TestTime().Unix()+3600, claims.Expiration)
}

func TestDecode_Malformed(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"two segments", "a.b"},
		{"four segments", "a.b.c.d"},
		{"invalid base64", "h.!!!.s"},
		{"not json", "h." + enc([]byte("hello")) + ".s"},
		{"json array", "h." + enc([]byte(`["a"]`)) + ".s"},
		{"json string", "h." + enc([]byte(`"a"`)) + ".s"},
		{"json null", "h." + enc([]byte(`null`)) + ".s"},
		{"trailing garbage", "h." + enc([]byte(`{"sub":"a"} x`)) + ".s"},
		{"object subject", testutil.RawToken(`{"sub":{"a":1},"exp":1}`)},
		{"invalid utf-8", testutil.RawToken("{\"sub\":\"al\xffice\",\"exp\":9999999999}")},
		{"exp beyond int64 as float", testutil.RawToken(`{"sub":"a","exp":1e30}`)},
		{"exp beyond int64 as integer", testutil.RawToken(`{"sub":"a","exp":99999999999999999999}`)},
		{"negative exp beyond int64", testutil.RawToken(`{"sub":"a","exp":-1e19}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Decode(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestDecode_PaddingAndAlphabet(t *testing.T) {
	// 22 bytes of payload, so the padded form ends in "==".
	payload := []byte(`{"sub":"ü?>","exp":1}`)

	padded := "h." + base64.URLEncoding.EncodeToString(payload) + ".s"
	claims, err := New().Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, "ü?>", claims.Subject)

	std := "h." + base64.RawStdEncoding.EncodeToString(payload) + ".s"
	claims, err = New().Decode(std)
	require.NoError(t, err)
	assert.Equal(t, "ü?>", claims.Subject)
}

func TestDecode_SignatureIsIgnored(t *testing.T) {
	raw := testutil.RawToken(`{"sub":"bob","exp":1700000000}`)
	claims, err := New().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, int64(1700000000), claims.Expiration)
}

func TestDecode_WeakTyping(t *testing.T) {
	raw := testutil.RawToken(`{"sub":"carol","id":42,"exp":1700000000.9,"roles":"HR"}`)

	claims, err := New().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID())
	assert.Equal(t, int64(1700000000), claims.Expiration)
	assert.Equal(t, []domainauth.ClaimValue{domainauth.StringClaim("HR")}, claims.Roles)
}

func TestDecode_AuthoritiesMustBeAList(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"record", `{"sub":"a","exp":1,"authorities":{"authority":"ADMIN"}}`},
		{"string", `{"sub":"a","exp":1,"authorities":"ROLE_ADMIN"}`},
		{"number", `{"sub":"a","exp":1,"authorities":3}`},
		{"null", `{"sub":"a","exp":1,"authorities":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := New().Decode(testutil.RawToken(tt.payload))
			require.NoError(t, err)
			assert.Empty(t, claims.Authorities)
			assert.Equal(t, "a", claims.Subject)
		})
	}
}

func TestDecode_ClaimKeysAreCaseSensitive(t *testing.T) {
	raw := testutil.RawToken(`{"SUB":"x","sub":"a","Role":"admin","ROLES":["HR"],"AUTHORITIES":["ROLE_HR"],"Exp":5,"exp":1}`)

	claims, err := New().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, domainauth.ClaimSet{Subject: "a", Expiration: 1}, claims)
}

func TestDecode_MixedAuthorityShapes(t *testing.T) {
	raw := testutil.RawToken(`{"sub":"d","exp":1,"authorities":[7,{"name":"ROLE_HR"},{"a":1,"b":2},"ROLE_TRAINER",null],"role":["x"]}`)

	claims, err := New().Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.ClaimValue{
		{},
		domainauth.RecordClaim("ROLE_HR"),
		{},
		domainauth.StringClaim("ROLE_TRAINER"),
		{},
	}, claims.Authorities)
	assert.Equal(t, domainauth.ClaimAbsent, claims.Role.Kind)
}

func TestDecode_MissingClaims(t *testing.T) {
	claims, err := New().Decode(testutil.RawToken(`{}`))
	require.NoError(t, err)
	assert.Equal(t, domainauth.ClaimSet{}, claims)
}

func TestExtractClaim(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want domainauth.ClaimValue
	}{
		{"string", "ROLE_ADMIN", domainauth.StringClaim("ROLE_ADMIN")},
		{"authority record", map[string]any{"authority": "HR", "other": 1}, domainauth.RecordClaim("HR")},
		{"single field record", map[string]any{"role": "HR"}, domainauth.RecordClaim("HR")},
		{"single non-string field", map[string]any{"role": 1}, domainauth.ClaimValue{}},
		{"number", 3.0, domainauth.ClaimValue{}},
		{"nil", nil, domainauth.ClaimValue{}},
		{"list", []any{"ADMIN"}, domainauth.ClaimValue{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractClaim(tt.in))
		})
	}
}

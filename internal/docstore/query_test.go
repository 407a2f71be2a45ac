package docstore_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/stretchr/testify/require"
)

func testDoc(t *testing.T) docstore.Document {
	t.Helper()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc, err := docstore.NewDocument("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", docstore.Fields{
		"email":    "shopper@example.com",
		"attempts": 2,
		"used":     false,
		"tags":     []string{"vip", "wholesale"},
		"mfaSettings": map[string]any{
			"totp": map[string]any{"enabled": true},
		},
		"expiresAt": created.Add(10 * time.Minute),
	}, created)
	require.NoError(t, err)
	return doc
}

func TestQueryMatches(t *testing.T) {
	doc := testDoc(t)
	created := doc.CreatedAt

	tests := []struct {
		name  string
		query docstore.Query
		want  bool
	}{
		{"empty query", docstore.Query{}, true},
		{"eq string", docstore.Query{"email": docstore.Eq("shopper@example.com")}, true},
		{"eq int against stored number", docstore.Query{"attempts": docstore.Eq(2)}, true},
		{"eq bool", docstore.Query{"used": docstore.Eq(false)}, true},
		{"eq mismatch", docstore.Query{"used": docstore.Eq(true)}, false},
		{"missing field", docstore.Query{"phone": docstore.Eq("x")}, false},
		{"nested path", docstore.Query{"mfaSettings.totp.enabled": docstore.Eq(true)}, true},
		{"nested missing", docstore.Query{"mfaSettings.sms.enabled": docstore.Eq(true)}, false},
		{"id", docstore.Query{docstore.KeyID: docstore.Eq(doc.ID)}, true},
		{"regex", docstore.Query{"email": docstore.Regex(regexp.MustCompile(`(?i)^SHOPPER@`))}, true},
		{"regex non-string", docstore.Query{"attempts": docstore.Regex(regexp.MustCompile(`2`))}, false},
		{"contains substring", docstore.Query{"email": docstore.Contains("EXAMPLE")}, true},
		{"contains array element", docstore.Query{"tags": docstore.Contains("vip")}, true},
		{"in", docstore.Query{"attempts": docstore.In(1, 2, 3)}, true},
		{"in miss", docstore.Query{"email": docstore.In("a@b.c")}, false},
		{"before", docstore.Query{"expiresAt": docstore.Before(created.Add(time.Hour))}, true},
		{"not before", docstore.Query{"expiresAt": docstore.Before(created)}, false},
		{"created before", docstore.Query{docstore.KeyCreatedAt: docstore.Before(created.Add(time.Second))}, true},
		{"all must hold", docstore.Query{
			"email": docstore.Eq("shopper@example.com"),
			"used":  docstore.Eq(true),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.query.Matches(doc))
		})
	}
}

func TestDocumentJSONFlattens(t *testing.T) {
	doc := testDoc(t)

	data, err := doc.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), `"_id":"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"`)

	var back docstore.Document
	require.NoError(t, back.UnmarshalJSON(data))
	require.Equal(t, doc.ID, back.ID)
	require.True(t, doc.CreatedAt.Equal(back.CreatedAt))
	require.Equal(t, doc.Fields, back.Fields)
}

func TestDocumentUnmarshalLegacyRecord(t *testing.T) {
	// Records written by the previous storefront backend.
	raw := `{"_id":"abc123","email":"a@b.co","createdAt":"2025-01-02T03:04:05.678Z"}`

	var doc docstore.Document
	require.NoError(t, doc.UnmarshalJSON([]byte(raw)))
	require.Equal(t, "abc123", doc.ID)
	require.Equal(t, 2025, doc.CreatedAt.Year())
	require.True(t, doc.UpdatedAt.IsZero())
	require.Equal(t, docstore.Fields{"email": "a@b.co"}, doc.Fields)
}

func TestMergeAndClone(t *testing.T) {
	doc := testDoc(t)
	later := doc.CreatedAt.Add(time.Minute)

	merged, err := doc.Merge(docstore.Fields{"used": true, "_id": "ignored"}, later)
	require.NoError(t, err)
	require.Equal(t, true, merged.Fields["used"])
	require.Equal(t, "shopper@example.com", merged.Fields["email"])
	require.Equal(t, doc.ID, merged.ID)
	require.True(t, merged.UpdatedAt.Equal(later))
	require.NotContains(t, merged.Fields, "_id")

	// The original is untouched.
	require.Equal(t, false, doc.Fields["used"])

	clone := doc.Clone()
	clone.Fields["mfaSettings"].(map[string]any)["totp"].(map[string]any)["enabled"] = false
	v, _ := doc.Get("mfaSettings.totp.enabled")
	require.Equal(t, true, v)
}

func TestFieldsOf(t *testing.T) {
	type rec struct {
		UserID string `json:"userId"`
		Count  int    `json:"count"`
	}
	fields, err := docstore.FieldsOf(rec{UserID: "u1", Count: 3})
	require.NoError(t, err)
	require.Equal(t, docstore.Fields{"userId": "u1", "count": float64(3)}, fields)

	_, err = docstore.FieldsOf("not an object")
	require.Error(t, err)
}

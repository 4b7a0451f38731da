package metha

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRequestParsesResponse(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		assert.Equal(t, "ListRecords", r.URL.Query().Get("verb"))
		assert.Equal(t, "oai_dc", r.URL.Query().Get("metadataPrefix"))
		fmt.Fprint(w, sampleListRecordsXML)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Username = "alice"
	c.Password = "secret"

	env, err := c.Request(VerbListRecords, Params{"metadataPrefix": "oai_dc"})
	require.NoError(t, err)
	assert.True(t, gotOK)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "secret", gotPass)
	require.Len(t, env.ListRecords.Records, 1)
}

func TestClientRequestNonSuccessStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Request(VerbIdentify, Params{})
	require.Error(t, err)

	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
}

func TestClientRequestMalformedXMLIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<not-xml")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Request(VerbIdentify, Params{})
	require.Error(t, err)

	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
}

func TestPrependSchema(t *testing.T) {
	assert.Equal(t, "http://example.org/oai", PrependSchema("example.org/oai"))
	assert.Equal(t, "https://example.org/oai", PrependSchema("https://example.org/oai"))
}

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dropDatabas3/hellopassport/internal/config"
	httpx "github.com/dropDatabas3/hellopassport/internal/http"
	"github.com/dropDatabas3/hellopassport/internal/issuer"
	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/passport"
	"github.com/dropDatabas3/hellopassport/internal/visa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	brokerIss = "https://broker.example"
	visaIss   = "https://broker.example/issuers/patto"
)

func newServer(t *testing.T) (*httptest.Server, *keys.Registry) {
	t.Helper()
	reg, err := keys.DemoRegistry()
	require.NoError(t, err)

	st, err := issuer.New(reg, config.Issuer{
		ID:     "patto",
		Issuer: visaIss,
		KID:    "patto-kid1",
		Form:   config.FormCompact,
		Grants: map[string][]config.Grant{
			"alice": {{Assertions: []string{"c:DS1"}}},
		},
	})
	require.NoError(t, err)

	rk, err := reg.RSA("rfc-rsa")
	require.NoError(t, err)

	metricsHandler, err := httpx.RegisterMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	r := httpx.NewRouter(httpx.Deps{
		Issuers: []httpx.Issuer{st},
		Broker: &passport.Broker{
			Issuer:  brokerIss,
			KID:     "rfc-rsa",
			Key:     rk,
			Issuers: []passport.VisaIssuer{st},
		},
		Metrics: metricsHandler,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, reg
}

func getJSON(t *testing.T, url string, status int, dst any) http.Header {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	if dst != nil {
		require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.Header
}

func TestRouter_Discovery(t *testing.T) {
	srv, _ := newServer(t)

	var doc map[string]string
	getJSON(t, srv.URL+"/issuers/patto/.well-known/openid-configuration", http.StatusOK, &doc)
	require.Equal(t, visaIss, doc["issuer"])
	require.Equal(t, visaIss+"/.well-known/jwks", doc["jwks_uri"])

	getJSON(t, srv.URL+"/.well-known/openid-configuration", http.StatusOK, &doc)
	require.Equal(t, brokerIss, doc["issuer"])
}

func TestRouter_JWKS(t *testing.T) {
	srv, _ := newServer(t)

	var set keys.JWKS
	getJSON(t, srv.URL+"/issuers/patto/.well-known/jwks", http.StatusOK, &set)
	require.Len(t, set.Keys, 1)
	require.Equal(t, keys.KtyOKP, set.Keys[0].Kty)
	require.Equal(t, "patto-kid1", set.Keys[0].Kid)

	var raw map[string][]map[string]any
	getJSON(t, srv.URL+"/.well-known/jwks", http.StatusOK, &raw)
	require.Len(t, raw["keys"], 1)
	require.NotContains(t, raw["keys"][0], "d")
	require.NotContains(t, raw["keys"][0], "p")
}

func TestRouter_Visa(t *testing.T) {
	srv, reg := newServer(t)

	var resp struct {
		Visa *string `json:"visa"`
	}
	h := getJSON(t, srv.URL+"/issuers/patto/visa?sub=alice", http.StatusOK, &resp)
	require.NotEmpty(t, h.Get("X-Request-ID"))
	require.NotNil(t, resp.Visa)

	cv, err := visa.DecodeCompactVisa(*resp.Visa)
	require.NoError(t, err)
	ek, err := reg.Ed25519("patto-kid1")
	require.NoError(t, err)
	pub, err := ek.PublicKey()
	require.NoError(t, err)
	require.NoError(t, cv.Verify(pub))

	resp.Visa = nil
	getJSON(t, srv.URL+"/issuers/patto/visa?sub=bob", http.StatusOK, &resp)
	require.Nil(t, resp.Visa)

	var apiErr map[string]string
	getJSON(t, srv.URL+"/issuers/patto/visa", http.StatusBadRequest, &apiErr)
	require.Equal(t, "invalid_request", apiErr["error"])
	require.NotEmpty(t, apiErr["request_id"])
}

func TestRouter_Passport(t *testing.T) {
	srv, reg := newServer(t)

	var resp map[string]string
	getJSON(t, srv.URL+"/passport?sub=alice", http.StatusOK, &resp)

	set, err := reg.Subset("rfc-rsa")
	require.NoError(t, err)
	jwks, err := set.PublicJWKS()
	require.NoError(t, err)

	v, err := jwtx.ParseRSA(resp["passport"], jwks, jwtx.ParseOptions{Issuer: brokerIss, Typ: passport.TokenType})
	require.NoError(t, err)
	visas, ok := v.Claims[passport.ClaimVisas].([]any)
	require.True(t, ok)
	require.Len(t, visas, 1)
}

type brokenIssuer struct{}

func (brokenIssuer) ID() string               { return "broken" }
func (brokenIssuer) Issuer() string           { return "https://broken.example" }
func (brokenIssuer) JWKS() (keys.JWKS, error) { return keys.JWKS{}, errors.New("no keys") }
func (brokenIssuer) CreateVisaFor(context.Context, string) (string, bool, error) {
	return "", false, errors.New("hsm offline")
}

func TestRouter_ServerErrors(t *testing.T) {
	srv := httptest.NewServer(httpx.NewRouter(httpx.Deps{Issuers: []httpx.Issuer{brokenIssuer{}}}))
	defer srv.Close()

	var apiErr map[string]string
	getJSON(t, srv.URL+"/issuers/broken/visa?sub=alice", http.StatusInternalServerError, &apiErr)
	require.Equal(t, "server_error", apiErr["error"])
	require.NotContains(t, apiErr["error_description"], "hsm")

	getJSON(t, srv.URL+"/issuers/broken/.well-known/jwks", http.StatusInternalServerError, &apiErr)

	// sin broker no hay /passport
	getJSON(t, srv.URL+"/passport?sub=alice", http.StatusNotFound, nil)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t)

	getJSON(t, srv.URL+"/healthz", http.StatusNoContent, nil)
	getJSON(t, srv.URL+"/issuers/patto/visa?sub=alice", http.StatusOK, &map[string]any{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	body := buf.String()
	require.Contains(t, body, "hellopassport_visas_issued_total")
	require.Contains(t, body, `path="/issuers/patto/visa"`)
}

func TestRequestID_Propagated(t *testing.T) {
	srv, _ := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

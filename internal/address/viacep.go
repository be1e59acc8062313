package address

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/accounts/internal/shared"
)

// DefaultViaCEPURL is the public ViaCEP endpoint.
const DefaultViaCEPURL = "https://viacep.com.br/ws"

// ViaCEP wraps interactions with the ViaCEP API.
type ViaCEP struct {
	baseURL    string
	httpClient *http.Client
}

// NewViaCEP constructs a client. A zero timeout falls back to five seconds.
func NewViaCEP(baseURL string, timeout time.Duration) *ViaCEP {
	if baseURL == "" {
		baseURL = DefaultViaCEPURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ViaCEP{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type viaCEPResponse struct {
	CEP        string     `json:"cep"`
	Logradouro string     `json:"logradouro"`
	Bairro     string     `json:"bairro"`
	Localidade string     `json:"localidade"`
	UF         string     `json:"uf"`
	Erro       viaCEPFlag `json:"erro"`
}

// viaCEPFlag accepts both `"erro": true` and `"erro": "true"`.
type viaCEPFlag bool

func (f *viaCEPFlag) UnmarshalJSON(data []byte) error {
	value := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*f = viaCEPFlag(strings.EqualFold(value, "true"))
	return nil
}

// Lookup fetches the address of a normalized postal code.
func (c *ViaCEP) Lookup(ctx context.Context, code string) (Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", c.baseURL, code), nil)
	if err != nil {
		return Address{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("%w: viacep: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Address{}, fmt.Errorf("%w: viacep returned status %d", shared.ErrUpstream, resp.StatusCode)
	}
	var payload viaCEPResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("%w: viacep: decode: %v", shared.ErrUpstream, err)
	}
	if payload.Erro {
		return Address{}, ErrNotFound
	}
	return Address{
		PostalCode: payload.CEP,
		Region:     payload.UF,
		Locality:   payload.Localidade,
		Street:     payload.Logradouro,
		District:   payload.Bairro,
	}, nil
}

var _ Lookup = (*ViaCEP)(nil)

package iprisk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/kelmah/review-verification/pkg/config"
	"github.com/kelmah/review-verification/pkg/httpclient"
	"github.com/oschwald/geoip2-golang"
)

// GeoProvider resolves an IP address through one geolocation source
type GeoProvider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*IPInfo, error)
}

// NewProvider builds the provider selected by configuration
func NewProvider(cfg config.IPInfoConfig) (GeoProvider, error) {
	switch cfg.Provider {
	case ProviderIPStack:
		return NewIPStackProvider(cfg.BaseURL, cfg.APIKey), nil
	case ProviderIPInfo:
		return NewIPInfoProvider(cfg.BaseURL, cfg.APIKey), nil
	case ProviderIPAPI:
		return NewIPAPIProvider(cfg.BaseURL, cfg.APIKey), nil
	case ProviderMaxMind:
		return OpenMaxMindProvider(cfg.MaxMindDBPath)
	default:
		return nil, fmt.Errorf("unknown IP info provider %q", cfg.Provider)
	}
}

func baseURLOr(baseURL, fallback string) string {
	if baseURL == "" {
		return fallback
	}
	return strings.TrimRight(baseURL, "/")
}

// IPStackProvider queries api.ipstack.com with the security module enabled
type IPStackProvider struct {
	client *httpclient.Client
	apiKey string
}

type ipstackResponse struct {
	Success     *bool  `json:"success"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	City        string `json:"city"`
	Connection  struct {
		ISP string `json:"isp"`
	} `json:"connection"`
	Security struct {
		IsProxy   bool   `json:"is_proxy"`
		ProxyType string `json:"proxy_type"`
		IsTor     bool   `json:"is_tor"`
	} `json:"security"`
	Error *struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// NewIPStackProvider creates an ipstack provider
func NewIPStackProvider(baseURL, apiKey string) *IPStackProvider {
	return &IPStackProvider{
		client: httpclient.NewClient(baseURLOr(baseURL, "http://api.ipstack.com")).Apply(httpclient.WithDefaultRetry()),
		apiKey: apiKey,
	}
}

// Name implements GeoProvider
func (p *IPStackProvider) Name() string { return ProviderIPStack }

// Lookup implements GeoProvider
func (p *IPStackProvider) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	path := fmt.Sprintf("/%s?access_key=%s&security=1", url.PathEscape(ip), url.QueryEscape(p.apiKey))

	var resp ipstackResponse
	if err := p.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("ipstack lookup: %w", err)
	}
	// ipstack reports API errors with a 200 status
	if resp.Success != nil && !*resp.Success {
		if resp.Error != nil {
			return nil, fmt.Errorf("ipstack lookup: code %d: %s", resp.Error.Code, resp.Error.Info)
		}
		return nil, errors.New("ipstack lookup failed")
	}

	return &IPInfo{
		Country:     resp.CountryName,
		CountryCode: resp.CountryCode,
		City:        resp.City,
		ISP:         resp.Connection.ISP,
		Proxy:       resp.Security.IsProxy,
		VPN:         strings.EqualFold(resp.Security.ProxyType, "vpn"),
		Tor:         resp.Security.IsTor,
	}, nil
}

// IPInfoProvider queries ipinfo.io. ipinfo only returns the ISO country
// code; the English name is derived from it. Anonymity flags need a plan
// that includes the privacy module; without it they stay false.
type IPInfoProvider struct {
	client *httpclient.Client
	token  string
}

type ipinfoResponse struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Org     string `json:"org"`
	Privacy struct {
		VPN   bool `json:"vpn"`
		Proxy bool `json:"proxy"`
		Tor   bool `json:"tor"`
	} `json:"privacy"`
}

// NewIPInfoProvider creates an ipinfo.io provider
func NewIPInfoProvider(baseURL, token string) *IPInfoProvider {
	return &IPInfoProvider{
		client: httpclient.NewClient(baseURLOr(baseURL, "https://ipinfo.io")).Apply(httpclient.WithDefaultRetry()),
		token:  token,
	}
}

// Name implements GeoProvider
func (p *IPInfoProvider) Name() string { return ProviderIPInfo }

// Lookup implements GeoProvider
func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	var headers map[string]string
	if p.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.token}
	}

	var resp ipinfoResponse
	if err := p.client.GetJSON(ctx, "/"+url.PathEscape(ip)+"/json", headers, &resp); err != nil {
		return nil, fmt.Errorf("ipinfo lookup: %w", err)
	}

	return &IPInfo{
		Country:     CountryName(resp.Country),
		CountryCode: resp.Country,
		City:        resp.City,
		ISP:         resp.Org,
		Proxy:       resp.Privacy.Proxy,
		VPN:         resp.Privacy.VPN,
		Tor:         resp.Privacy.Tor,
	}, nil
}

// IPAPIProvider queries ip-api.com. It only reports a single proxy flag
// covering proxies, VPNs and Tor exits.
type IPAPIProvider struct {
	client *httpclient.Client
	apiKey string
}

type ipapiResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Proxy       bool   `json:"proxy"`
}

// NewIPAPIProvider creates an ip-api.com provider
func NewIPAPIProvider(baseURL, apiKey string) *IPAPIProvider {
	fallback := "http://ip-api.com"
	if apiKey != "" {
		fallback = "https://pro.ip-api.com"
	}
	return &IPAPIProvider{
		client: httpclient.NewClient(baseURLOr(baseURL, fallback)).Apply(httpclient.WithDefaultRetry()),
		apiKey: apiKey,
	}
}

// Name implements GeoProvider
func (p *IPAPIProvider) Name() string { return ProviderIPAPI }

// Lookup implements GeoProvider
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	path := "/json/" + url.PathEscape(ip) + "?fields=status,message,country,countryCode,city,isp,proxy"
	if p.apiKey != "" {
		path += "&key=" + url.QueryEscape(p.apiKey)
	}

	var resp ipapiResponse
	if err := p.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("ip-api lookup: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup: %s", resp.Message)
	}

	return &IPInfo{
		Country:     resp.Country,
		CountryCode: resp.CountryCode,
		City:        resp.City,
		ISP:         resp.ISP,
		Proxy:       resp.Proxy,
	}, nil
}

// MaxMindProvider resolves IPs from a local GeoIP2/GeoLite2 City database.
// City databases only carry the anonymous proxy trait, so VPN and Tor are
// always false for this provider.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// OpenMaxMindProvider opens the database at path
func OpenMaxMindProvider(path string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open maxmind database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Name implements GeoProvider
func (p *MaxMindProvider) Name() string { return ProviderMaxMind }

// Lookup implements GeoProvider
func (p *MaxMindProvider) Lookup(_ context.Context, ip string) (*IPInfo, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP address %q", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("maxmind lookup: %w", err)
	}

	return &IPInfo{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Proxy:       record.Traits.IsAnonymousProxy,
	}, nil
}

// Close releases the database
func (p *MaxMindProvider) Close() error {
	return p.reader.Close()
}

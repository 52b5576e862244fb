package iprisk

// IPInfo is the geolocation and anonymity data resolved for an IP address.
// Empty strings mean the value is unknown.
type IPInfo struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	ISP         string `json:"isp,omitempty"`
	Proxy       bool   `json:"proxy"`
	VPN         bool   `json:"vpn"`
	Tor         bool   `json:"tor"`
}

// Default returns the all-unknown lookup result
func Default() *IPInfo {
	return &IPInfo{}
}

// Anonymized reports whether traffic from the IP went through a proxy, VPN or Tor
func (i *IPInfo) Anonymized() bool {
	return i.Proxy || i.VPN || i.Tor
}

// Provider names accepted by NewProvider
const (
	ProviderIPStack = "ipstack"
	ProviderIPInfo  = "ipinfo"
	ProviderIPAPI   = "ipapi"
	ProviderMaxMind = "maxmind"
)

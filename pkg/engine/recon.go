package engine

// ReconKind tells which recon path produced a ReconData.
type ReconKind string

const (
	ReconWeb  ReconKind = "web"
	ReconRepo ReconKind = "repo"
)

// CookieInfo is a Set-Cookie header reduced to its security flags.
type CookieInfo struct {
	Name     string `json:"name"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"http_only"`
	SameSite string `json:"same_site,omitempty"`
}

// PortInfo is an open port reported by a network scan.
type PortInfo struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service,omitempty"`
}

// SecretMatch is a credential-like string found in fetched content.
type SecretMatch struct {
	Rule     string `json:"rule"`
	Location string `json:"location"`
	Redacted string `json:"redacted"`
}

// ReconData is the evidence gathered by the recon capability and handed to
// the reasoner.
type ReconData struct {
	Kind       ReconKind         `json:"kind"`
	Target     string            `json:"target"`
	StatusCode int               `json:"status_code,omitempty"`
	Server     string            `json:"server,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Cookies    []CookieInfo      `json:"cookies,omitempty"`
	Scripts    []string          `json:"scripts,omitempty"`
	Comments   []string          `json:"comments,omitempty"`
	Secrets    []SecretMatch     `json:"secrets,omitempty"`
	OpenPorts  []PortInfo        `json:"open_ports,omitempty"`
	ServerNote []string          `json:"server_notes,omitempty"` // nikto "+ " lines
	Files      map[string]string `json:"files,omitempty"`        // repo path -> content
	Notes      []string          `json:"notes,omitempty"`
}

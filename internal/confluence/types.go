package confluence

// Page represents a Confluence content item as returned by the REST API.
// Body and Space are only populated when the request carries the
// expand=body.storage,space directive.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Body  *Body  `json:"body,omitempty"`
	Space *Space `json:"space,omitempty"`
}

// Body wraps the storage-format representation of a page body.
type Body struct {
	Storage *Storage `json:"storage,omitempty"`
}

// Storage holds the raw page markup (XHTML-based storage format).
type Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation,omitempty"`
}

// Space is the collection a page belongs to.
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SpaceKey returns the page's space key, or "UNKNOWN" when the space
// was not expanded.
func (p *Page) SpaceKey() string {
	if p.Space == nil || p.Space.Key == "" {
		return "UNKNOWN"
	}
	return p.Space.Key
}

// SpaceName returns the page's space name, or "Unknown Space" when the
// space was not expanded.
func (p *Page) SpaceName() string {
	if p.Space == nil || p.Space.Name == "" {
		return "Unknown Space"
	}
	return p.Space.Name
}

// contentResponse is one page of results from /rest/api/content.
type contentResponse struct {
	Results []Page `json:"results"`
	Start   int    `json:"start"`
	Limit   int    `json:"limit"`
	Size    int    `json:"size"`
}

package scale

// tableau10 is the categorical palette for Top-N series.
var tableau10 = []string{
	"#4e79a7", "#f28e2c", "#e15759", "#76b7b2", "#59a14f",
	"#edc949", "#af7aa1", "#ff9da7", "#9c755f", "#bab0ab",
}

// Stop is one sampled legend point.
type Stop struct {
	Value int64  `json:"value"`
	Hex   string `json:"hex"`
}

// Manager holds the current sequential domain and categorical assignment.
// It is owned by the dashboard coordinator and is not safe for concurrent use.
type Manager struct {
	domain     Domain
	categories map[string]string
	order      []string
}

// NewManager returns a Manager with the [0, 1] domain and no categories.
func NewManager() *Manager {
	return &Manager{
		domain:     Domain{Min: 0, Max: 1},
		categories: make(map[string]string),
	}
}

// SetDomain replaces the sequential domain.
func (m *Manager) SetDomain(d Domain) {
	m.domain = d
}

// Domain returns the current sequential domain.
func (m *Manager) Domain() Domain {
	return m.domain
}

// ColorFor maps a value through the current domain.
func (m *Manager) ColorFor(value int64) Color {
	return Interpolate(m.domain.Normalize(value))
}

// SetCategories assigns palette colors in iteration order. Calling it with
// the same regions in the same order keeps every assignment.
func (m *Manager) SetCategories(regions []string) {
	m.categories = make(map[string]string, len(regions))
	m.order = m.order[:0]
	for i, r := range regions {
		m.categories[r] = tableau10[i%len(tableau10)]
		m.order = append(m.order, r)
	}
}

// CategoryColorFor returns the series color for region.
func (m *Manager) CategoryColorFor(region string) (string, bool) {
	c, ok := m.categories[region]
	return c, ok
}

// Categories returns region -> color for the current set.
func (m *Manager) Categories() map[string]string {
	out := make(map[string]string, len(m.categories))
	for k, v := range m.categories {
		out[k] = v
	}
	return out
}

// Legend samples n evenly spaced stops across the current domain.
func (m *Manager) Legend(n int) []Stop {
	if n < 2 {
		n = 2
	}
	stops := make([]Stop, n)
	span := m.domain.Max - m.domain.Min
	for i := range stops {
		t := float64(i) / float64(n-1)
		stops[i] = Stop{
			Value: m.domain.Min + int64(t*float64(span)+0.5),
			Hex:   Interpolate(t).Hex,
		}
	}
	return stops
}

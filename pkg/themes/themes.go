// Package themes defines the closed set of built-in color themes. The set is
// fixed at build time; preference records reference themes by ID.
package themes

// Theme is an immutable theme definition.
type Theme struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Dark   bool              `json:"dark"`
	Colors map[string]string `json:"colors"`
}

// Built-in theme IDs.
const (
	Dark   = "dark"
	Light  = "light"
	Ocean  = "ocean"
	Forest = "forest"
)

// DefaultID is the theme assigned to never-seen identities.
const DefaultID = Dark

var builtins = map[string]Theme{
	Dark: {
		ID:   Dark,
		Name: "Dark",
		Dark: true,
		Colors: map[string]string{
			"background": "#1a1a2e",
			"surface":    "#16213e",
			"text":       "#eaeaea",
			"accent":     "#0f3460",
			"highlight":  "#e94560",
		},
	},
	Light: {
		ID:   Light,
		Name: "Light",
		Dark: false,
		Colors: map[string]string{
			"background": "#f5f5f5",
			"surface":    "#ffffff",
			"text":       "#222222",
			"accent":     "#1976d2",
			"highlight":  "#d32f2f",
		},
	},
	Ocean: {
		ID:   Ocean,
		Name: "Ocean",
		Dark: true,
		Colors: map[string]string{
			"background": "#0b132b",
			"surface":    "#1c2541",
			"text":       "#d9f0ff",
			"accent":     "#3a506b",
			"highlight":  "#5bc0be",
		},
	},
	Forest: {
		ID:   Forest,
		Name: "Forest",
		Dark: true,
		Colors: map[string]string{
			"background": "#081c15",
			"surface":    "#1b4332",
			"text":       "#d8f3dc",
			"accent":     "#2d6a4f",
			"highlight":  "#95d5b2",
		},
	},
}

// Get returns the theme for id and whether it exists.
func Get(id string) (Theme, bool) {
	t, ok := builtins[id]
	return t, ok
}

// Default returns the default built-in theme.
func Default() Theme {
	return builtins[DefaultID]
}

// IDs returns the IDs of all built-in themes in stable order.
func IDs() []string {
	return []string{Dark, Light, Ocean, Forest}
}

// All returns every built-in theme in stable order.
func All() []Theme {
	ids := IDs()
	out := make([]Theme, 0, len(ids))
	for _, id := range ids {
		out = append(out, builtins[id])
	}
	return out
}

// Valid reports whether id names a built-in theme.
func Valid(id string) bool {
	_, ok := builtins[id]
	return ok
}

package geo

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Aliases maps geometry names to the region names used by the dataset.
type Aliases map[string]string

// DefaultAliases returns the built-in geometry-to-dataset name table.
func DefaultAliases() Aliases {
	return Aliases{
		"Jakarta Raya":     "DKI Jakarta",
		"Yogyakarta":       "Daerah Istimewa Yogyakarta",
		"North Kalimantan": "Kalimantan Utara",
		"Bangka-Belitung":  "Kepulauan Bangka Belitung",
	}
}

// aliasFile is the YAML layout of an alias file:
//
//	aliases:
//	  "Jakarta Raya": "DKI Jakarta"
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases returns the defaults extended by the YAML file at path. An
// empty path yields the defaults alone. File entries override defaults.
func LoadAliases(path string) (Aliases, error) {
	out := DefaultAliases()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read aliases %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "geo: parse aliases %s", path)
	}
	for k, v := range f.Aliases {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Translate returns the dataset name for a geometry name. Names without an
// alias pass through unchanged.
func (a Aliases) Translate(name string) string {
	if v, ok := a[name]; ok {
		return v
	}
	return name
}

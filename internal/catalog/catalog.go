package catalog

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/angariumd/dsclient/internal/models"
)

// ConfigError reports a system document that is missing or unusable.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("loading catalog %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(path string, err error) error {
	return errors.WithStack(&ConfigError{Path: path, Err: err})
}

// Catalog is the ordered, immutable list of server types in the cluster.
// Duplicated type names are kept in document order.
type Catalog struct {
	types []models.ServerType
}

// New builds a catalog from already parsed server types.
func New(types []models.ServerType) (*Catalog, error) {
	if len(types) == 0 {
		return nil, errors.New("no server types")
	}
	for i, st := range types {
		if strings.TrimSpace(st.Name) == "" {
			return nil, errors.Errorf("server %d has no type name", i)
		}
		if st.Cores < 0 || st.Memory < 0 || st.Disk < 0 || st.Limit < 0 {
			return nil, errors.Errorf("server type %s has negative capacity", st.Name)
		}
	}
	c := &Catalog{types: make([]models.ServerType, len(types))}
	copy(c.types, types)
	return c, nil
}

// Load parses the system document at path. The format follows the file
// extension: .xml for the simulator's ds-system.xml, .yaml/.yml otherwise.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError(path, err)
	}

	var types []models.ServerType
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		types, err = parseYAML(data)
	default:
		types, err = parseXML(data)
	}
	if err != nil {
		return nil, configError(path, err)
	}

	c, err := New(types)
	if err != nil {
		return nil, configError(path, err)
	}
	return c, nil
}

type serverDoc struct {
	Type       string  `xml:"type,attr" yaml:"type"`
	Limit      int     `xml:"limit,attr" yaml:"limit"`
	BootupTime int     `xml:"bootupTime,attr" yaml:"bootupTime"`
	HourlyRate float64 `xml:"hourlyRate,attr" yaml:"hourlyRate"`
	Rate       float64 `xml:"rate,attr" yaml:"rate"`
	CoreCount  int     `xml:"coreCount,attr" yaml:"coreCount"`
	Memory     int     `xml:"memory,attr" yaml:"memory"`
	Disk       int     `xml:"disk,attr" yaml:"disk"`
}

func (d serverDoc) serverType() models.ServerType {
	rate := d.HourlyRate
	if rate == 0 {
		rate = d.Rate
	}
	return models.ServerType{
		Name:       d.Type,
		Limit:      d.Limit,
		BootTime:   d.BootupTime,
		HourlyRate: rate,
		Cores:      d.CoreCount,
		Memory:     d.Memory,
		Disk:       d.Disk,
	}
}

type systemDoc struct {
	XMLName xml.Name    `xml:"system"`
	Servers []serverDoc `xml:"servers>server"`
}

func parseXML(data []byte) ([]models.ServerType, error) {
	var doc systemDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing xml")
	}
	return toServerTypes(doc.Servers), nil
}

func parseYAML(data []byte) ([]models.ServerType, error) {
	var doc struct {
		Servers []serverDoc `yaml:"servers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing yaml")
	}
	return toServerTypes(doc.Servers), nil
}

func toServerTypes(docs []serverDoc) []models.ServerType {
	types := make([]models.ServerType, 0, len(docs))
	for _, d := range docs {
		types = append(types, d.serverType())
	}
	return types
}

// All returns the server types in document order.
func (c *Catalog) All() []models.ServerType {
	out := make([]models.ServerType, len(c.types))
	copy(out, c.types)
	return out
}

func (c *Catalog) Len() int {
	return len(c.types)
}

// Largest returns the type with the most cores; ties go to the first one in
// document order.
func (c *Catalog) Largest() (models.ServerType, bool) {
	if len(c.types) == 0 {
		return models.ServerType{}, false
	}
	largest := c.types[0]
	for _, st := range c.types[1:] {
		if st.Cores > largest.Cores {
			largest = st
		}
	}
	return largest, true
}

// SortedByCores returns a private copy ordered by ascending core count,
// keeping document order between equal counts.
func (c *Catalog) SortedByCores() []models.ServerType {
	out := c.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cores < out[j].Cores
	})
	return out
}

// Lookup returns the first server type with the given name.
func (c *Catalog) Lookup(name string) (models.ServerType, bool) {
	for _, st := range c.types {
		if st.Name == name {
			return st, true
		}
	}
	return models.ServerType{}, false
}

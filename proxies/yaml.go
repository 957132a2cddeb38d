package proxies

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFile is the on-disk proxy list, one sequence per kind
type yamlFile struct {
	Tor   []Proxy `yaml:"tor"`
	HTTP  []Proxy `yaml:"http"`
	SOCKS []Proxy `yaml:"socks"`
}

// Parse reads a proxy list from YAML
func Parse(r io.Reader) ([]Proxy, error) {
	var yf yamlFile
	if err := yaml.NewDecoder(r).Decode(&yf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var out []Proxy
	for _, group := range []struct {
		kind Kind
		list []Proxy
	}{
		{KindTor, yf.Tor},
		{KindHTTP, yf.HTTP},
		{KindSOCKS, yf.SOCKS},
	} {
		for _, p := range group.list {
			p.Kind = group.kind
			out = append(out, p)
		}
	}
	return out, nil
}

// LoadFile reads a proxy list; a missing file yields the built-in defaults
func LoadFile(path string) ([]Proxy, error) {
	if path == "" {
		return Defaults(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Export writes proxies as YAML grouped by kind
func Export(w io.Writer, list []Proxy) error {
	var yf yamlFile
	for _, p := range list {
		switch p.Kind {
		case KindTor:
			yf.Tor = append(yf.Tor, p)
		case KindHTTP:
			yf.HTTP = append(yf.HTTP, p)
		case KindSOCKS:
			yf.SOCKS = append(yf.SOCKS, p)
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yf); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

package intel

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"asset-forge/internal/domain"
)

// ProviderSpec describes one provider entry in the providers file.
type ProviderSpec struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"` // json (default) or website
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	RPS     float64           `yaml:"rate_per_second,omitempty"`
	Burst   int               `yaml:"burst,omitempty"`
}

// ProvidersFile is the on-disk provider priority configuration:
//
//	categories:
//	  holders:
//	    - name: explorer
//	      url: https://api.example.com/{network}/tokens/{address}/holders
//	      headers: {X-API-Key: ${EXPLORER_API_KEY}}
//	  profile:
//	    - name: token-page
//	      type: website
//	      url: https://tokens.example.com/{network}/{address}
type ProvidersFile struct {
	Categories map[domain.Category][]ProviderSpec `yaml:"categories"`
}

// LoadProvidersFile reads and validates a providers file. Environment
// references in URLs and header values are expanded.
func LoadProvidersFile(path string) (*ProvidersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes and validates providers YAML.
func ParseProviders(data []byte) (*ProvidersFile, error) {
	var f ProvidersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	for cat, specs := range f.Categories {
		for i := range specs {
			specs[i].URL = os.ExpandEnv(specs[i].URL)
			for k, v := range specs[i].Headers {
				specs[i].Headers[k] = os.ExpandEnv(v)
			}
		}
		f.Categories[cat] = specs
	}
	return &f, nil
}

func (f *ProvidersFile) validate() error {
	var errs []error
	for cat, specs := range f.Categories {
		if !knownCategory(cat) {
			errs = append(errs, fmt.Errorf("unknown category %q", cat))
			continue
		}
		names := map[string]bool{}
		for i, s := range specs {
			switch {
			case s.Name == "":
				errs = append(errs, fmt.Errorf("%s[%d]: name is required", cat, i))
			case names[s.Name]:
				errs = append(errs, fmt.Errorf("%s[%d]: duplicate provider %q", cat, i, s.Name))
			}
			names[s.Name] = true
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: url is required", cat, i))
			}
			switch s.Type {
			case "", "json", "website":
			default:
				errs = append(errs, fmt.Errorf("%s[%d]: unknown type %q", cat, i, s.Type))
			}
		}
	}
	return errors.Join(errs...)
}

// Chains builds providers in file order. client is shared by every provider.
func (f *ProvidersFile) Chains(client *http.Client) Chains {
	chains := Chains{}
	for cat, specs := range f.Categories {
		for _, s := range specs {
			opts := HTTPProviderOptions{
				Name:    s.Name,
				URL:     s.URL,
				Headers: s.Headers,
				Timeout: s.Timeout,
				RPS:     s.RPS,
				Burst:   s.Burst,
				Client:  client,
			}
			var p domain.Provider
			if s.Type == "website" {
				p = NewProfileProvider(opts)
			} else {
				p = NewHTTPProvider(opts)
			}
			chains[cat] = append(chains[cat], p)
		}
	}
	return chains
}

func knownCategory(c domain.Category) bool {
	for _, k := range domain.Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Package platform describes the publishing targets a job can be generated
// for: how each is priced, whether it needs text or an image, and how the
// user prompt is adapted before it reaches the provider.
package platform

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"genstudio/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

type fileFormat struct {
	Defaults struct {
		TextCost  float64 `yaml:"text_cost"`
		ImageCost float64 `yaml:"image_cost"`
	} `yaml:"defaults"`
	Platforms map[string]struct {
		Kind     string  `yaml:"kind"`
		Cost     float64 `yaml:"cost"`
		Template string  `yaml:"template"`
	} `yaml:"platforms"`
}

// Profile is the resolved configuration of one platform.
type Profile struct {
	Name     string
	Kind     domain.PlatformKind
	Cost     float64
	template *template.Template
}

// Catalog implements domain.PlatformCatalog.
type Catalog struct {
	platforms map[string]Profile
	textCost  float64
	imageCost float64
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("platform: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("platform: decode catalog: %w", err)
	}
	c := &Catalog{
		platforms: make(map[string]Profile, len(f.Platforms)),
		textCost:  f.Defaults.TextCost,
		imageCost: f.Defaults.ImageCost,
	}
	if c.imageCost < c.textCost {
		return nil, fmt.Errorf("platform: image_cost %.4f must not be below text_cost %.4f", c.imageCost, c.textCost)
	}
	for name, p := range f.Platforms {
		key := foldName(name)
		profile := Profile{Name: key, Kind: domain.PlatformKindText, Cost: p.Cost}
		switch strings.ToLower(strings.TrimSpace(p.Kind)) {
		case "", string(domain.PlatformKindText):
		case string(domain.PlatformKindImage):
			profile.Kind = domain.PlatformKindImage
		default:
			return nil, fmt.Errorf("platform: %s: unknown kind %q", name, p.Kind)
		}
		if profile.Cost <= 0 {
			profile.Cost = c.defaultCost(profile.Kind)
		}
		if tmpl := strings.TrimSpace(p.Template); tmpl != "" {
			parsed, err := template.New(key).Option("missingkey=error").Parse(tmpl)
			if err != nil {
				return nil, fmt.Errorf("platform: %s: parse template: %w", name, err)
			}
			profile.template = parsed
		}
		c.platforms[key] = profile
	}
	return c, nil
}

// Normalize returns the case-folded tag platform is looked up under.
func (c *Catalog) Normalize(platform string) string {
	return foldName(platform)
}

// Lookup returns the profile for platform, if configured.
func (c *Catalog) Lookup(platform string) (Profile, bool) {
	profile, ok := c.platforms[foldName(platform)]
	return profile, ok
}

// Kind reports whether platform produces text or images. Unknown platforms
// whose tag ends in "_image" are treated as image platforms, everything else
// as text.
func (c *Catalog) Kind(platform string) domain.PlatformKind {
	if profile, ok := c.Lookup(platform); ok {
		return profile.Kind
	}
	if strings.HasSuffix(foldName(platform), "_image") {
		return domain.PlatformKindImage
	}
	return domain.PlatformKindText
}

// EstimateCost returns the informational cost of one job on platform.
func (c *Catalog) EstimateCost(platform string) float64 {
	if profile, ok := c.Lookup(platform); ok {
		return profile.Cost
	}
	return c.defaultCost(c.Kind(platform))
}

// AdaptPrompt applies the platform template. Unknown platforms, platforms
// without a template and template failures return prompt unchanged.
func (c *Catalog) AdaptPrompt(platform, prompt string) string {
	profile, ok := c.Lookup(platform)
	if !ok || profile.template == nil {
		return prompt
	}
	var buf bytes.Buffer
	data := struct{ Prompt, Platform string }{Prompt: prompt, Platform: profile.Name}
	if err := profile.template.Execute(&buf, data); err != nil {
		return prompt
	}
	return buf.String()
}

func (c *Catalog) defaultCost(kind domain.PlatformKind) float64 {
	if kind == domain.PlatformKindImage {
		return c.imageCost
	}
	return c.textCost
}

func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

var _ domain.PlatformCatalog = (*Catalog)(nil)

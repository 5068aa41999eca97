package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type AssemblyParameters struct {
	Title        string                        `yaml:"Title"`
	ElementCount int                           `yaml:"ElementCount"`
	XMin         float64                       `yaml:"XMin"`
	XMax         float64                       `yaml:"XMax"`
	Ranks        int                           `yaml:"Ranks"`
	Layout       string                        `yaml:"Layout"` // single, monolithic, nested
	Source       float64                       `yaml:"Source"`
	BCs          map[string]map[string]float64 `yaml:"BCs"` // First key is BC name/type, second is parameter name
}

func (ap *AssemblyParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ap); err != nil {
		return err
	}
	if ap.ElementCount < 1 {
		return fmt.Errorf("ElementCount must be at least 1, got %d", ap.ElementCount)
	}
	if ap.Ranks < 1 {
		ap.Ranks = 1
	}
	if ap.XMax <= ap.XMin {
		return fmt.Errorf("XMax (%g) must exceed XMin (%g)", ap.XMax, ap.XMin)
	}
	switch ap.Layout {
	case "", "single", "monolithic", "nested":
	default:
		return fmt.Errorf("unknown layout %q", ap.Layout)
	}
	return nil
}

func (ap *AssemblyParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ap.Title)
	fmt.Printf("[%d]\t\t\t= ElementCount\n", ap.ElementCount)
	fmt.Printf("[%g,%g]\t\t= Domain\n", ap.XMin, ap.XMax)
	fmt.Printf("[%d]\t\t\t= Ranks\n", ap.Ranks)
	fmt.Printf("[%s]\t\t= Layout\n", ap.Layout)
	keys := make([]string, len(ap.BCs))
	i := 0
	for k := range ap.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ap.BCs[key])
	}
}

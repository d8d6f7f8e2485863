package schedule

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stwalsh4118/branchreel/internal/models"
)

// Definition is the file and wire form of an experience. It is read from
// YAML by the CLI and from JSON by the API.
type Definition struct {
	ID         string        `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string        `yaml:"name" json:"name"`
	MainSource string        `yaml:"main_source" json:"main_source"`
	Media      []MediaHint   `yaml:"media,omitempty" json:"media,omitempty"`
	Questions  []QuestionDef `yaml:"questions" json:"questions"`
	Branches   []BranchDef   `yaml:"branches" json:"branches"`
}

// MediaHint declares a known source length in seconds.
type MediaHint struct {
	URI      string  `yaml:"uri" json:"uri"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// QuestionDef is a question in a definition file.
type QuestionDef struct {
	ID            int      `yaml:"id" json:"id"`
	TriggerTime   float64  `yaml:"trigger_time" json:"trigger_time"`
	Prompt        string   `yaml:"prompt" json:"prompt"`
	Options       []string `yaml:"options" json:"options"`
	AllowMultiple bool     `yaml:"allow_multiple,omitempty" json:"allow_multiple"`
}

// BranchDef is a branch point in a definition file.
type BranchDef struct {
	ID          int                   `yaml:"id" json:"id"`
	TriggerTime float64               `yaml:"trigger_time" json:"trigger_time"`
	Title       string                `yaml:"title" json:"title"`
	Condition   *models.ConditionSpec `yaml:"condition,omitempty" json:"condition,omitempty"`
	Options     []OptionDef           `yaml:"options" json:"options"`
}

// OptionDef is a branch option in a definition file. Absent offsets are nil.
type OptionDef struct {
	ID            int      `yaml:"id" json:"id"`
	Text          string   `yaml:"text" json:"text"`
	IsRecommended bool     `yaml:"is_recommended,omitempty" json:"is_recommended"`
	VideoSource   string   `yaml:"video_source,omitempty" json:"video_source,omitempty"`
	StartOffset   float64  `yaml:"start_offset,omitempty" json:"start_offset"`
	SwitchOffset  *float64 `yaml:"switch_offset,omitempty" json:"switch_offset,omitempty"`
	ResumeOffset  *float64 `yaml:"resume_offset,omitempty" json:"resume_offset,omitempty"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// LoadFile reads a YAML definition from disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	def, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseYAML decodes a YAML definition, rejecting unknown keys.
func ParseYAML(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	return &def, nil
}

// ToYAML renders the definition as a YAML document.
func (d *Definition) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// Experience converts the definition into the domain type.
func (d *Definition) Experience() models.Experience {
	exp := models.Experience{
		ID:         d.ID,
		Name:       d.Name,
		MainSource: d.MainSource,
		Questions:  make([]models.Question, 0, len(d.Questions)),
		Branches:   make([]models.BranchDefinition, 0, len(d.Branches)),
		Durations:  make(map[string]float64, len(d.Media)),
	}
	for _, m := range d.Media {
		exp.Durations[m.URI] = m.Duration
	}
	for _, q := range d.Questions {
		exp.Questions = append(exp.Questions, models.Question{
			ID:            q.ID,
			TriggerTime:   q.TriggerTime,
			Prompt:        q.Prompt,
			Options:       q.Options,
			AllowMultiple: q.AllowMultiple,
		})
	}
	for _, b := range d.Branches {
		branch := models.BranchDefinition{
			ID:            b.ID,
			TriggerTime:   b.TriggerTime,
			Title:         b.Title,
			ConditionSpec: b.Condition,
			Options:       make([]models.BranchOption, 0, len(b.Options)),
		}
		for _, o := range b.Options {
			branch.Options = append(branch.Options, models.BranchOption{
				ID:            o.ID,
				Text:          o.Text,
				IsRecommended: o.IsRecommended,
				VideoSource:   o.VideoSource,
				StartOffset:   o.StartOffset,
				SwitchOffset:  models.SecondsFromPtr(o.SwitchOffset),
				ResumeOffset:  models.SecondsFromPtr(o.ResumeOffset),
				Tags:          o.Tags,
			})
		}
		exp.Branches = append(exp.Branches, branch)
	}
	return exp
}

// DefinitionOf renders an experience back into its definition form.
func DefinitionOf(exp *models.Experience) *Definition {
	def := &Definition{
		ID:         exp.ID,
		Name:       exp.Name,
		MainSource: exp.MainSource,
		Questions:  make([]QuestionDef, 0, len(exp.Questions)),
		Branches:   make([]BranchDef, 0, len(exp.Branches)),
	}
	for uri, d := range exp.Durations {
		def.Media = append(def.Media, MediaHint{URI: uri, Duration: d})
	}
	for _, q := range exp.Questions {
		def.Questions = append(def.Questions, QuestionDef{
			ID:            q.ID,
			TriggerTime:   q.TriggerTime,
			Prompt:        q.Prompt,
			Options:       q.Options,
			AllowMultiple: q.AllowMultiple,
		})
	}
	for _, b := range exp.Branches {
		bd := BranchDef{
			ID:          b.ID,
			TriggerTime: b.TriggerTime,
			Title:       b.Title,
			Condition:   b.ConditionSpec,
			Options:     make([]OptionDef, 0, len(b.Options)),
		}
		for _, o := range b.Options {
			bd.Options = append(bd.Options, OptionDef{
				ID:            o.ID,
				Text:          o.Text,
				IsRecommended: o.IsRecommended,
				VideoSource:   o.VideoSource,
				StartOffset:   o.StartOffset,
				SwitchOffset:  o.SwitchOffset.Ptr(),
				ResumeOffset:  o.ResumeOffset.Ptr(),
				Tags:          o.Tags,
			})
		}
		def.Branches = append(def.Branches, bd)
	}
	return def
}

// Package prompts manages reusable prompt templates with a {{text}}
// placeholder for the pending selection.
package prompts

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"

	"github.com/mwallis/sidekick/internal/session"
)

// Placeholder substituted with the selected text when a template is applied.
const Placeholder = "{{text}}"

// Template is one prompt template. Presets are built in and identified by
// reserved ids; their content is refreshed from the built-in definition on
// every load.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	IsPreset bool   `json:"is_preset"`
}

var presets = []*Template{
	{
		ID:       "preset-translate",
		Name:     "Translate",
		Content:  "Please translate the following text into [target language]:\n\n" + Placeholder,
		IsPreset: true,
	},
	{
		ID:       "preset-summarize",
		Name:     "Summarize",
		Content:  "Please summarize the main points of the following text:\n\n" + Placeholder,
		IsPreset: true,
	},
}

var presetIDs = strset.New("preset-translate", "preset-summarize")

// Store is the slice of the persistent store templates live in.
type Store interface {
	GetJSON(key string, out any) (bool, error)
	SetJSON(key string, value any) error
}

// Load returns the stored templates merged with the built-in presets: preset
// content is always overwritten by the current definition, custom entries are
// preserved verbatim. First load seeds the store with the presets.
func Load(store Store) ([]*Template, error) {
	var templates []*Template
	if _, err := store.GetJSON(session.KeyPromptTemplates, &templates); err != nil {
		return nil, errors.Wrap(err, "loading prompt templates")
	}

	if len(templates) == 0 {
		templates = clonePresets()
		if err := store.SetJSON(session.KeyPromptTemplates, templates); err != nil {
			return nil, errors.Wrap(err, "seeding preset templates")
		}
		return templates, nil
	}

	byID := map[string]*Template{}
	for _, template := range templates {
		template.IsPreset = presetIDs.Has(template.ID)
		byID[template.ID] = template
	}
	for i := len(presets) - 1; i >= 0; i-- {
		preset := presets[i]
		if existing, ok := byID[preset.ID]; ok {
			existing.Name = preset.Name
			existing.Content = preset.Content
			existing.IsPreset = true
			continue
		}
		fresh := *preset
		templates = append([]*Template{&fresh}, templates...)
	}
	return templates, nil
}

// Save persists the template list.
func Save(store Store, templates []*Template) error {
	return errors.Wrap(store.SetJSON(session.KeyPromptTemplates, templates), "persisting prompt templates")
}

// Add creates and persists a custom template.
func Add(store Store, templates []*Template, name, content string) ([]*Template, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return nil, errors.New("template name and content cannot be empty")
	}
	template := &Template{
		ID:      uuid.New().String()[:8],
		Name:    name,
		Content: content,
	}
	templates = append(templates, template)
	return templates, Save(store, templates)
}

// Delete removes a template by id. Presets cannot be deleted.
func Delete(store Store, templates []*Template, id string) ([]*Template, error) {
	if presetIDs.Has(id) {
		return nil, errors.New("preset templates cannot be deleted")
	}
	for i, template := range templates {
		if template.ID == id {
			templates = append(templates[:i], templates[i+1:]...)
			return templates, Save(store, templates)
		}
	}
	return nil, errors.Errorf("no template with id '%s'", id)
}

// Find locates a template by id or (case-insensitive) name.
func Find(templates []*Template, key string) *Template {
	for _, template := range templates {
		if template.ID == key || strings.EqualFold(template.Name, key) {
			return template
		}
	}
	return nil
}

// Apply substitutes the placeholder with the selected text. Without selected
// text the template body is returned untouched for the user to fill in.
func (t *Template) Apply(selectedText string) string {
	if selectedText == "" {
		return t.Content
	}
	return strings.ReplaceAll(t.Content, Placeholder, selectedText)
}

// Sorted returns a display view: presets first, then by name.
func Sorted(templates []*Template) []*Template {
	view := make([]*Template, len(templates))
	copy(view, templates)
	sort.SliceStable(view, func(i, j int) bool {
		if view[i].IsPreset != view[j].IsPreset {
			return view[i].IsPreset
		}
		return view[i].Name < view[j].Name
	})
	return view
}

func clonePresets() []*Template {
	clones := make([]*Template, 0, len(presets))
	for _, preset := range presets {
		clone := *preset
		clones = append(clones, &clone)
	}
	return clones
}

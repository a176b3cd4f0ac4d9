// Package scenario defines the static roleplay scenario catalog. Scenario
// rows are materialized in the database lazily, on first selection.
package scenario

import (
	"sort"

	"github.com/fieldry/salestrainer/internal/database"
)

// Template describes one selectable roleplay scenario.
type Template struct {
	Key          string
	Title        string
	Description  string
	SystemPrompt string
}

// catalog is keyed by the scenario's stable name, which doubles as the
// callback-data suffix in the Telegram keyboard.
var catalog = map[string]Template{
	"cold_call": {
		Key:         "cold_call",
		Title:       "Cold call",
		Description: "A prospect who has never heard of the product picks up the phone.",
		SystemPrompt: "You are playing a busy small-business owner who receives an unsolicited " +
			"sales call. You have never heard of the product. You are skeptical and short on " +
			"time, but not rude. Only agree to next steps if the trainee uncovers a real need " +
			"and handles your objections. Stay in character as the client at all times and " +
			"never reveal that you are an AI. If the trainee does well, close with agreement; " +
			"if they push too hard, say you are not interested and end the conversation.",
	},
	"expensive": {
		Key:         "expensive",
		Title:       "Price objection",
		Description: "An interested buyer who thinks the product costs too much.",
		SystemPrompt: "You are playing a potential customer who likes the product but is " +
			"convinced it is overpriced. Raise the price objection early and repeatedly. " +
			"Concede only to well-argued value framing, comparisons, or payment options. " +
			"Stay in character as the client at all times and never reveal that you are an AI. " +
			"If the trainee justifies the price convincingly, accept the deal; otherwise say " +
			"goodbye politely.",
	},
	"competitor": {
		Key:         "competitor",
		Title:       "Competitor comparison",
		Description: "A buyer who is already in talks with a competitor.",
		SystemPrompt: "You are playing a procurement manager already negotiating with a " +
			"competing vendor. Challenge the trainee to differentiate their offer without " +
			"badmouthing the competitor. Stay in character as the client at all times and " +
			"never reveal that you are an AI. Agree to a follow-up meeting only if the " +
			"trainee presents concrete, relevant advantages.",
	},
}

// Get returns the template for the given key.
func Get(key string) (Template, bool) {
	tmpl, ok := catalog[key]
	return tmpl, ok
}

// All returns the catalog templates sorted by key, for stable menu order.
func All() []Template {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	templates := make([]Template, 0, len(keys))
	for _, k := range keys {
		templates = append(templates, catalog[k])
	}
	return templates
}

// Row converts a template to the database row used for lazy materialization.
func (t Template) Row() *database.Scenario {
	return &database.Scenario{
		Name:         t.Key,
		Title:        t.Title,
		Description:  t.Description,
		SystemPrompt: t.SystemPrompt,
	}
}

// Package channels holds the roster of channels mirrored by default.
//
// The built-in roster can be replaced at startup with a JSON file of the
// same shape (CHANNELS_FILE), so adding a channel needs no rebuild.
package channels

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// Theme is the display palette the frontend uses for a channel.
type Theme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// Channel is one roster entry.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Twitter string `json:"twitter,omitempty"`
	Theme   Theme  `json:"theme"`
}

// Default is the built-in roster.
var Default = []Channel{
	{ID: "UC1opHUrw8rvnsadT-iGp7Cg", Name: "Minato Aqua", Theme: Theme{"#ea698b", "#fce1e8", "#d55d92"}},
	{ID: "UCrV1Hf5r8P148idjoSfrGEQ", Name: "Yuuki Sakuna", Theme: Theme{"#ff9eb5", "#fff0f5", "#ff5e89"}},
	{ID: "UC1DCedRgGHBdm81E1llLhOQ", Name: "Usada Pekora", Theme: Theme{"#89c2f5", "#e6f2ff", "#4a90e2"}},
	{ID: "UC-hM6YJuNYVAmUWxeIr9FeA", Name: "Sakura Miko", Twitter: "@sakuramiko35", Theme: Theme{"#ff9eb5", "#fff5f8", "#ff5e89"}},
	{ID: "UCZlDXzGoo7d44bwdNObFacg", Name: "Amane Kanata", Theme: Theme{"#8ecae6", "#f0f8ff", "#219ebc"}},
	{ID: "UCdn5BQ06XqgXoAxIhbqw5Rg", Name: "Shirakami Fubuki", Theme: Theme{"#69c2c6", "#e0f7fa", "#00acc1"}},
	{ID: "UC0TXe_LYZ4scaW2XMyi5_kw", Name: "Azki", Theme: Theme{"#d81159", "#fce4ec", "#ad1457"}},
	{ID: "UCLIpj4TmXviSTNE_U5WG_Ug", Name: "Kurageu Roa", Theme: Theme{"#ffb703", "#fff8e1", "#fb8500"}},
	{ID: "UC7fk0CB07ly8oSl0aqKkqFg", Name: "Nakiri Ayame", Theme: Theme{"#e63946", "#ffe0e0", "#d62828"}},
	{ID: "UCXTpFs_3PqI41qX2d9tL2Rw", Name: "Murasaki Shion", Theme: Theme{"#9d4edd", "#f3e5f5", "#7b2cbf"}},
	{ID: "UC5CwaMl1eIgY8h02uZw7u8A", Name: "Hoshimachi Suisei", Theme: Theme{"#4361ee", "#e6eeff", "#3a0ca3"}},
}

// Load returns the roster from path, or Default when path is empty.
func Load(path string) ([]Channel, error) {
	if path == "" {
		return Default, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel roster: %w", err)
	}

	var roster []Channel
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse channel roster %s: %w", path, err)
	}
	if err := validate(roster); err != nil {
		return nil, fmt.Errorf("invalid channel roster %s: %w", path, err)
	}
	return roster, nil
}

// Refs converts a roster to the id/name pairs the sync orchestrator takes.
func Refs(roster []Channel) []models.ChannelRef {
	refs := make([]models.ChannelRef, len(roster))
	for i, c := range roster {
		refs[i] = models.ChannelRef{ID: c.ID, Name: c.Name}
	}
	return refs
}

func validate(roster []Channel) error {
	if len(roster) == 0 {
		return fmt.Errorf("roster is empty")
	}
	seen := make(map[string]bool, len(roster))
	for i, c := range roster {
		if c.ID == "" {
			return fmt.Errorf("entry %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate channel id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

package a2a

import (
	"net/http"
	"sort"
)

// Card is the capability document served from the discovery endpoint.
type Card struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	URL             string           `json:"url"`
	Version         string           `json:"version"`
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    CardCapabilities `json:"capabilities"`
	Skills          []CardSkill      `json:"skills"`
	Extensions      map[string]any   `json:"extensions,omitempty"`
}

type CardCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

type CardSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
	Tags        []string `json:"tags,omitempty"`
}

// CardHandler serves the capability document listing every registered
// skill plus the taxonomy extension block.
func (d *Dispatcher) CardHandler(name, description, baseURL, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := d.Skills()
		sort.Strings(ids)

		skills := make([]CardSkill, 0, len(ids))
		for _, id := range ids {
			skills = append(skills, CardSkill{
				ID:          id,
				Name:        id,
				InputModes:  []string{"application/json"},
				OutputModes: []string{"application/json"},
				Tags:        skillTags(id),
			})
		}

		writeJSON(w, http.StatusOK, Card{
			Name:            name,
			Description:     description,
			URL:             baseURL,
			Version:         version,
			ProtocolVersion: "0.3.0",
			Capabilities:    CardCapabilities{},
			Skills:          skills,
			Extensions: map[string]any{
				"taxonomy": map[string]any{
					"feedback":    "reputation feedback authorization lifecycle",
					"validation":  "third-party validation attestations",
					"thread":      "task and message threads",
					"association": "dual-signed identity associations",
				},
			},
		})
	}
}

func skillTags(id string) []string {
	for i := range id {
		if id[i] == '/' {
			return []string{id[:i]}
		}
	}
	return nil
}

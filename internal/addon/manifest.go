package addon

import (
	"encoding/json"
	"regexp"

	"forgecore/internal/engineerr"
)

// namePattern constrains addon.json's "name" field: letters, digits,
// underscore and hyphen, starting with a letter.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// Manifest is the parsed addon.json contract. Unknown JSON fields are
// ignored by encoding/json's default decoding behaviour.
type Manifest struct {
	Name         string   `json:"name"`
	Main         string   `json:"main"`
	Depends      []string `json:"depends"`
	SoftDepends  []string `json:"softDepends"`
	Repositories []string `json:"repositories"`
	Dependencies []string `json:"dependencies"`
}

// ParseManifest decodes and validates an addon.json payload.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, engineerr.New(engineerr.KindManifestMalformed, "", err)
	}
	if !namePattern.MatchString(m.Name) {
		return nil, engineerr.New(engineerr.KindManifestMalformed, m.Name, nil)
	}
	return &m, nil
}

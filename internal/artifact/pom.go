package artifact

import "encoding/xml"

// pomModel is the minimal subset of a Maven POM this resolver reads:
// just enough of the dependency list to drive transitive resolution.
// There is no ecosystem Go library for POM parsing in the retrieved
// corpus, so this stays on encoding/xml rather than reaching for a
// general-purpose XML-processing dependency that no example uses.
type pomModel struct {
	XMLName      xml.Name       `xml:"project"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Classifier string `xml:"classifier"`
	Scope      string `xml:"scope"`
	Optional   bool   `xml:"optional"`
}

// excluded reports whether d is out of scope for resolution: exclude
// test and provided scope, and exclude optional
// dependencies.
func (d pomDependency) excluded() bool {
	if d.Optional {
		return true
	}
	switch d.Scope {
	case "test", "provided":
		return true
	default:
		return false
	}
}

func (d pomDependency) coordinate() Coordinate {
	return Coordinate{GroupID: d.GroupID, ArtifactID: d.ArtifactID, Version: d.Version, Classifier: d.Classifier}
}

func parsePOM(data []byte) (*pomModel, error) {
	var model pomModel
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

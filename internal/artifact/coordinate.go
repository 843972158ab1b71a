package artifact

import (
	"fmt"
	"strings"

	"forgecore/internal/engineerr"
)

// Coordinate is a classic Maven-style artifact coordinate:
// "groupId:artifactId:version[:classifier]".
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
}

func (c Coordinate) String() string {
	if c.Classifier != "" {
		return fmt.Sprintf("%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Version, c.Classifier)
	}
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}

// ParseCoordinate parses a coordinate string, rejecting anything that
// isn't 3 or 4 colon-separated, non-empty parts.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return Coordinate{}, engineerr.New(engineerr.KindArtifactUnresolved, s, nil)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Coordinate{}, engineerr.New(engineerr.KindArtifactUnresolved, s, nil)
		}
	}
	c := Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// groupPath turns a dotted group id into its repository path segment,
// e.g. "org.example" -> "org/example".
func (c Coordinate) groupPath() string {
	return strings.ReplaceAll(c.GroupID, ".", "/")
}

// jarFileName is the conventional jar file name for this coordinate.
func (c Coordinate) jarFileName() string {
	if c.Classifier != "" {
		return fmt.Sprintf("%s-%s-%s.jar", c.ArtifactID, c.Version, c.Classifier)
	}
	return fmt.Sprintf("%s-%s.jar", c.ArtifactID, c.Version)
}

func (c Coordinate) pomFileName() string {
	return fmt.Sprintf("%s-%s.pom", c.ArtifactID, c.Version)
}

// repoPath is the repository-relative directory for this coordinate:
// <groupPath>/<artifactId>/<version>.
func (c Coordinate) repoPath() string {
	return strings.Join([]string{c.groupPath(), c.ArtifactID, c.Version}, "/")
}

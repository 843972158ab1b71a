package artifact

import "strings"

// Repository is a remote Maven-layout repository.
type Repository struct {
	URL string
}

// DefaultRepositories are always present in a resolver's working set, per
// "central" plus any additional defaults baked into the
// distribution.
func DefaultRepositories() []Repository {
	return []Repository{
		{URL: "https://repo.maven.apache.org/maven2"},
	}
}

func normalizeRepoURL(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

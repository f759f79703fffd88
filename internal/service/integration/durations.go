package integration

import (
	"strings"
	"time"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// routeDuration holds the observed journey time between two towns.
// Matching is containment based so "madurai" covers "madurai junction".
type routeDuration struct {
	a, b    string
	minutes int
}

var knownDurations = []routeDuration{
	{"sivakasi", "madurai", 120},
	{"sivakasi", "virudhunagar", 45},
	{"sivakasi", "sattur", 40},
	{"sivakasi", "aruppukottai", 50},
	{"madurai", "virudhunagar", 90},
	{"sivakasi", "chennai", 360},
	{"madurai", "chennai", 360},
	{"virudhunagar", "chennai", 360},
	{"sivakasi", "coimbatore", 240},
	{"sivakasi", "tirupur", 240},
	{"madurai", "coimbatore", 240},
}

// journeyMinutes estimates how long a bus takes between two places,
// checking the known-route table in both directions before falling back
// to the configured default.
func journeyMinutes(origin, destination string, def time.Duration) int {
	from := domain.NormalizeText(origin)
	to := domain.NormalizeText(destination)

	for _, rd := range knownDurations {
		if routeCovers(from, to, rd.a, rd.b) || routeCovers(from, to, rd.b, rd.a) {
			return rd.minutes
		}
	}
	return int(def.Minutes())
}

func routeCovers(from, to, a, b string) bool {
	return strings.Contains(from, a) && strings.Contains(to, b)
}

package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// The bounded scan used when the name prefilter finds nothing.
const fallbackScanLimit = 500

// locationAliases groups the common short forms and spelling variants of
// Tamil Nadu town names under their canonical name. Two names that land in
// the same group are treated as the same place.
var locationAliases = map[string][]string{
	"virudhunagar":   {"vnr", "viru", "virudhu", "virudhunagar junction"},
	"sivakasi":       {"svk", "siva", "sivakasi town"},
	"madurai":        {"mdu", "madura", "madurai junction"},
	"sattur":         {"str", "sathur"},
	"aruppukottai":   {"apk", "aruppu", "aruppukkottai"},
	"kovilpatti":     {"kvp", "kovil", "kovilpatti town"},
	"rajapalayam":    {"rpm", "raja"},
	"srivilliputtur": {"svp", "srivilliputhur"},
	"tirunelveli":    {"nellai", "tirunelveli junction"},
	"thoothukudi":    {"tuticorin", "tut", "thoothukudi port"},
}

// candidateBuses returns the buses worth scoring against the given route.
// The SQL prefilter matches by containment only, so each queried name is
// first expanded through its alias group ("VNR" also queries as
// "virudhunagar"). When the widened prefilter still finds nothing the
// whole scan falls back to a bounded list, letting the scorer's edit
// distance catch misspellings the alias table does not know.
func (s *Service) candidateBuses(ctx context.Context, origin, destination string) ([]*domain.Bus, error) {
	buses, err := s.buses.ListBusesByRouteNames(ctx, searchTerms(origin), searchTerms(destination))
	if err != nil {
		return nil, fmt.Errorf("list candidate buses: %w", err)
	}
	if len(buses) > 0 {
		return buses, nil
	}

	buses, err = s.buses.ListBuses(ctx, fallbackScanLimit)
	if err != nil {
		return nil, fmt.Errorf("scan candidate buses: %w", err)
	}
	return buses, nil
}

// searchTerms expands a place name into the terms the prefilter should
// query: the normalized name itself plus every name in its alias group.
func searchTerms(name string) []string {
	normalized := domain.NormalizeText(name)
	terms := []string{normalized}
	for canonical, aliases := range locationAliases {
		if !inAliasGroup(normalized, canonical, aliases) {
			continue
		}
		if canonical != normalized {
			terms = append(terms, canonical)
		}
		for _, alias := range aliases {
			if alias != normalized {
				terms = append(terms, alias)
			}
		}
	}
	return terms
}

// namesEqual reports whether two place names are the same after trimming
// and case folding.
func namesEqual(a, b string) bool {
	return domain.NormalizeText(a) == domain.NormalizeText(b)
}

// namesMatch reports whether two place names refer to the same place:
// equal after normalization, containment in either direction, a shared
// alias group, or within the configured edit distance.
func (s *Service) namesMatch(a, b string) bool {
	na, nb := domain.NormalizeText(a), domain.NormalizeText(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	if sharedAliasGroup(na, nb) {
		return true
	}
	return levenshtein.ComputeDistance(na, nb) <= s.cfg.MaxEditDistance
}

// sharedAliasGroup reports whether both names resolve to the same canonical
// location through the alias table.
func sharedAliasGroup(a, b string) bool {
	for canonical, aliases := range locationAliases {
		if inAliasGroup(a, canonical, aliases) && inAliasGroup(b, canonical, aliases) {
			return true
		}
	}
	return false
}

func inAliasGroup(name, canonical string, aliases []string) bool {
	if strings.Contains(name, canonical) {
		return true
	}
	for _, alias := range aliases {
		if name == alias || strings.Contains(name, alias) {
			return true
		}
	}
	return false
}

// busNumbersEqual reports whether two bus numbers identify the same bus.
// Generated numbers never count as identifier matches.
func busNumbersEqual(a, b string) bool {
	if domain.IsGeneratedBusNumber(a) || domain.IsGeneratedBusNumber(b) {
		return false
	}
	na, nb := domain.NormalizeBusNumber(a), domain.NormalizeBusNumber(b)
	return na != "" && na == nb
}

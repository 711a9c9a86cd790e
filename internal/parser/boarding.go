package parser

import (
	"regexp"
	"strings"
)

// Boarding is a player seen at the controls of a vehicle.
type Boarding struct {
	Player string
	// Vehicle is the vehicle as logged, usually a class name with an
	// entity id suffix.
	Vehicle string
}

// boardingPatterns capture driver and ship. Hostility reports name the
// pilot of the targeted vehicle, so they count as boarding too.
var boardingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[C\]\s+(?P<driver>\S+)\s+entered entity\s+(?P<ship>\S+)\s+as driver`),
	regexp.MustCompile(`(?i)(?P<driver>\S+)\s+entered\s+(?P<ship>\S+)\s+as\s+driver`),
	regexp.MustCompile(`(?i)Driver:\s*(?P<driver>\S+).*?(?:vehicle|ship):\s*(?P<ship>\S+)`),
	hostilityPattern,
}

// Boarding reports which player line shows driving which vehicle. Like
// Parse it keeps no state; tracking drivers over time is up to the caller.
func (p *Parser) Boarding(line string) (Boarding, bool) {
	for _, re := range boardingPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		c := captures(re, m)
		player := cleanName(c["driver"])
		vehicle := strings.Trim(c["ship"], `'",`)
		if player != "" && vehicle != "" {
			return Boarding{Player: player, Vehicle: vehicle}, true
		}
	}
	return Boarding{}, false
}

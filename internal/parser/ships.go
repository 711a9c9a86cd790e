package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// entitySuffix matches the numeric instance id the game appends to entity
// class names, e.g. "ANVL_Arrow_651076209584".
var entitySuffix = regexp.MustCompile(`_\d+$`)

// builtinShips maps game vehicle class names to display labels.
// Keys are lowercase; manufacturer prefixes are dropped from labels.
var builtinShips = map[string]string{
	"aegs_avenger_titan":          "Avenger Titan",
	"aegs_avenger_stalker":        "Avenger Stalker",
	"aegs_eclipse":                "Eclipse",
	"aegs_gladius":                "Gladius",
	"aegs_hammerhead":             "Hammerhead",
	"aegs_idris_m":                "Idris-M",
	"aegs_idris_p":                "Idris-P",
	"aegs_javelin":                "Javelin",
	"aegs_reclaimer":              "Reclaimer",
	"aegs_redeemer":               "Redeemer",
	"aegs_retaliator":             "Retaliator",
	"aegs_sabre":                  "Sabre",
	"aegs_sabre_comet":            "Sabre Comet",
	"aegs_vanguard_warden":        "Vanguard Warden",
	"aegs_vanguard_sentinel":      "Vanguard Sentinel",
	"anvl_arrow":                  "Arrow",
	"anvl_c8r_pisces":             "Pisces Rescue",
	"anvl_carrack":                "Carrack",
	"anvl_hawk":                   "Hawk",
	"anvl_hornet_f7c":             "Hornet F7C",
	"anvl_hornet_f7c_mk2":         "Hornet F7C Mk II",
	"anvl_hornet_f7cm_mk2":        "Super Hornet Mk II",
	"anvl_lightning_f8c":          "F8C Lightning",
	"anvl_terrapin":               "Terrapin",
	"anvl_valkyrie":               "Valkyrie",
	"argo_mole":                   "MOLE",
	"argo_mpuv":                   "MPUV",
	"argo_raft":                   "RAFT",
	"banu_defender":               "Defender",
	"banu_merchantman":            "Merchantman",
	"cnou_mustang_alpha":          "Mustang Alpha",
	"cnou_nomad":                  "Nomad",
	"crus_a2_hercules":            "A2 Hercules",
	"crus_c2_hercules":            "C2 Hercules",
	"crus_m2_hercules":            "M2 Hercules",
	"crus_intrepid":               "Intrepid",
	"crus_spirit_a1":              "Spirit A1",
	"crus_spirit_c1":              "Spirit C1",
	"crus_star_runner":            "Mercury Star Runner",
	"crus_starfighter_inferno":    "Ares Inferno",
	"crus_starfighter_ion":        "Ares Ion",
	"drak_buccaneer":              "Buccaneer",
	"drak_caterpillar":            "Caterpillar",
	"drak_corsair":                "Corsair",
	"drak_cutlass_black":          "Cutlass Black",
	"drak_cutlass_blue":           "Cutlass Blue",
	"drak_cutlass_red":            "Cutlass Red",
	"drak_cutter":                 "Cutter",
	"drak_herald":                 "Herald",
	"drak_kraken":                 "Kraken",
	"drak_vulture":                "Vulture",
	"espr_prowler":                "Prowler",
	"espr_talon":                  "Talon",
	"espr_talon_shrike":           "Talon Shrike",
	"gama_syulen":                 "Syulen",
	"krig_p52_merlin":             "P-52 Merlin",
	"krig_p72_archimedes":         "P-72 Archimedes",
	"misc_fortune":                "Fortune",
	"misc_freelancer":             "Freelancer",
	"misc_freelancer_max":         "Freelancer MAX",
	"misc_hull_c":                 "Hull C",
	"misc_prospector":             "Prospector",
	"misc_razor":                  "Razor",
	"misc_reliant":                "Reliant Kore",
	"misc_reliant_sen":            "Reliant Sen",
	"misc_reliant_tana":           "Reliant Tana",
	"misc_starfarer":              "Starfarer",
	"mrai_guardian":               "Guardian",
	"orig_100i":                   "100i",
	"orig_300i":                   "300i",
	"orig_400i":                   "400i",
	"orig_600i":                   "600i",
	"orig_890jump":                "890 Jump",
	"rsi_aurora_mr":               "Aurora MR",
	"rsi_constellation_andromeda": "Constellation Andromeda",
	"rsi_constellation_taurus":    "Constellation Taurus",
	"rsi_perseus":                 "Perseus",
	"rsi_polaris":                 "Polaris",
	"rsi_scorpius":                "Scorpius",
	"rsi_zeus_cl":                 "Zeus CL",
	"tmbl_cyclone":                "Cyclone",
	"vncl_blade":                  "Blade",
	"vncl_glaive":                 "Glaive",
	"xian_nox":                    "Nox",
	"xnaa_santokyai":              "San'tok.yāi",
}

// ShipTable maps raw vehicle identifiers to human labels.
type ShipTable struct {
	labels map[string]string
}

// NewShipTable returns the built-in table extended with overrides.
// Override keys are class names (case-insensitive, instance id optional);
// an override replaces a built-in label with the same key.
func NewShipTable(overrides map[string]string) *ShipTable {
	return (&ShipTable{labels: builtinShips}).With(overrides)
}

// With returns a copy of t extended with overrides.
func (t *ShipTable) With(overrides map[string]string) *ShipTable {
	labels := make(map[string]string, t.Len()+len(overrides))
	if t != nil {
		for k, v := range t.labels {
			labels[k] = v
		}
	}
	for k, v := range overrides {
		key := shipKey(k)
		if key == "" || strings.TrimSpace(v) == "" {
			continue
		}
		labels[key] = strings.TrimSpace(v)
	}
	return &ShipTable{labels: labels}
}

// shipFile is the on-disk layout of a ship label override file.
type shipFile struct {
	Ships map[string]string `yaml:"ships"`
}

// LoadShipTable reads a YAML override file of the form
//
//	ships:
//	  DRAK_Cutlass_Steel: Cutlass Steel
//
// and returns the built-in table extended with it.
func LoadShipTable(path string) (*ShipTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ship file: %w", err)
	}
	var f shipFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing ship file %s: %w", path, err)
	}
	return NewShipTable(f.Ships), nil
}

// Normalize returns the display label for a raw vehicle identifier.
// Unknown identifiers are returned unchanged.
func (t *ShipTable) Normalize(raw string) string {
	if label, ok := t.Lookup(raw); ok {
		return label
	}
	return raw
}

// Lookup returns the display label for raw and whether it is a known vehicle.
func (t *ShipTable) Lookup(raw string) (string, bool) {
	if t == nil {
		return "", false
	}
	label, ok := t.labels[shipKey(raw)]
	return label, ok
}

// Len returns the number of known vehicles.
func (t *ShipTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

func shipKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return entitySuffix.ReplaceAllString(s, "")
}

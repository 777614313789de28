// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	KindInvalid    = EntityKind(invalidChoice)
	SubKindInvalid = EntitySubKind(invalidChoice)
	TypeInvalid    = EntityType(invalidChoice)
	SensorInvalid  = SensorType(invalidChoice)
)

// Catalog is the immutable, fully-derived entity table. A process holds
// exactly one *Catalog live at a time behind an atomic pointer; Current()
// returns it without locking on the hot path.
type Catalog struct {
	kindEnum    enum
	subKindEnum enum
	typeEnum    enum
	sensorEnum  enum

	data []EntityTypeData

	KindBoat        EntityKind
	KindCollectible EntityKind
	KindDecoy       EntityKind
	KindObstacle    EntityKind
	KindWeapon      EntityKind

	SubKindAircraft   EntitySubKind
	SubKindDepthCharge EntitySubKind
	SubKindMine       EntitySubKind
	SubKindMissile    EntitySubKind
	SubKindRam        EntitySubKind
	SubKindRocket     EntitySubKind
	SubKindSAM        EntitySubKind
	SubKindShell      EntitySubKind
	SubKindSubmarine  EntitySubKind
	SubKindTorpedo    EntitySubKind

	// Collectible/obstacle sub-kinds the interaction pass (internal/world)
	// dispatches on directly, rather than by EntityType name.
	SubKindCoin        EntitySubKind // the only "payment" collectible
	SubKindBarrel      EntitySubKind
	SubKindCrate       EntitySubKind
	SubKindOilPlatform EntitySubKind

	SensorRadar  SensorType
	SensorSonar  SensorType
	SensorVisual SensorType

	RadiusMax float32
	LevelMax  uint8
}

// entityTypeLoader captures just enough of a catalog entry to register its
// enum choices before the enums (and therefore the full decode) exist.
type entityTypeLoader struct {
	Kind    string         `json:"type"`
	SubKind string         `json:"subtype"`
	Sensors []sensorLoader `json:"sensors"`
}

type sensorLoader struct {
	Type string `json:"type"`
}

//go:embed data/entities.json
var defaultCatalogJSON []byte

var current atomic.Pointer[Catalog]

func init() {
	c, err := Parse(defaultCatalogJSON)
	if err != nil {
		panic(err)
	}
	current.Store(c)
}

// Current returns the live catalog. Safe to call from any goroutine; never
// returns nil once package init has run.
func Current() *Catalog {
	return current.Load()
}

// Install swaps c in as Current, for a server process that loaded a
// non-default declarative source at startup (Watch only installs on a
// subsequent file change, never on the call that sets it up).
func Install(c *Catalog) { current.Store(c) }

// Load reads and derives a catalog from a JSON file on disk, without
// installing it as Current. Use Watch to keep Current in sync with a file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse derives a Catalog from raw declarative JSON, shaped as a map from
// entity type name to its EntityTypeData.
func Parse(data []byte) (*Catalog, error) {
	var loaders map[string]entityTypeLoader
	if err := json.Unmarshal(data, &loaders); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	c := &Catalog{}
	for t, d := range loaders {
		c.kindEnum.add(d.Kind)
		c.subKindEnum.add(d.SubKind)
		c.typeEnum.add(t)
		for _, s := range d.Sensors {
			c.sensorEnum.add(s.Type)
		}
	}
	c.kindEnum.freeze("entity kind")
	c.subKindEnum.freeze("entity sub kind")
	c.typeEnum.freeze("entity type")
	c.sensorEnum.freeze("sensor type")

	c.KindBoat = c.parseKind("boat")
	c.KindCollectible = c.parseKind("collectible")
	c.KindDecoy = c.parseKind("decoy")
	c.KindObstacle = c.parseKind("obstacle")
	c.KindWeapon = c.parseKind("weapon")

	c.SubKindAircraft = c.parseSubKindOrInvalid("aircraft")
	c.SubKindDepthCharge = c.parseSubKindOrInvalid("depthCharge")
	c.SubKindMine = c.parseSubKindOrInvalid("mine")
	c.SubKindMissile = c.parseSubKindOrInvalid("missile")
	c.SubKindRam = c.parseSubKindOrInvalid("ram")
	c.SubKindRocket = c.parseSubKindOrInvalid("rocket")
	c.SubKindSAM = c.parseSubKindOrInvalid("sam")
	c.SubKindShell = c.parseSubKindOrInvalid("shell")
	c.SubKindSubmarine = c.parseSubKindOrInvalid("submarine")
	c.SubKindTorpedo = c.parseSubKindOrInvalid("torpedo")

	c.SubKindCoin = c.parseSubKindOrInvalid("coin")
	c.SubKindBarrel = c.parseSubKindOrInvalid("barrel")
	c.SubKindCrate = c.parseSubKindOrInvalid("crate")
	c.SubKindOilPlatform = c.parseSubKindOrInvalid("oilPlatform")

	c.SensorRadar = c.parseSensorOrInvalid("radar")
	c.SensorSonar = c.parseSensorOrInvalid("sonar")
	c.SensorVisual = c.parseSensorOrInvalid("visual")

	// The enum-typed fields of EntityTypeData (Kind, SubKind, sensor Type,
	// armament Default, ...) unmarshal JSON strings through this catalog's
	// own enum tables, so it must be installed before decoding entries.
	// derive* helpers below resolve enum choices (SubKindTorpedo and
	// friends) through the same scratch pointer; Parse is not reentrant.
	currentBuildingCatalog = c
	defer func() { currentBuildingCatalog = nil }()

	var byName map[string]EntityTypeData
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("catalog: decode entries: %w", err)
	}

	c.data = make([]EntityTypeData, len(c.typeEnum.strings))
	for i, name := range c.typeEnum.strings {
		if choice(i) == invalidChoice {
			continue
		}
		entry := byName[name]
		deriveOne(&entry)
		c.data[i] = entry

		if entry.Radius > c.RadiusMax {
			c.RadiusMax = entry.Radius
		}
		if entry.Level > c.LevelMax {
			c.LevelMax = entry.Level
		}
	}

	// Armament slot expansion runs in a second pass: a slot's reload is
	// copied from its Default entity type's own (now-derived) Reload, and
	// entries are visited in alphabetical, not dependency, order.
	for i := range c.data {
		if choice(i) == invalidChoice {
			continue
		}
		deriveArmaments(&c.data[i])
	}

	return c, nil
}

// Watch installs fsnotify on path and hot-swaps Current whenever it changes,
// for local development against a live-edited catalog source. Production
// deployments call Load once and never Watch.
func Watch(path string, log *zap.SugaredLogger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: watch: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("catalog: watch %s: %w", path, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c, err := Load(path)
				if err != nil {
					log.Warnw("catalog hot reload failed", "error", err)
					continue
				}
				current.Store(c)
				log.Infow("catalog hot reloaded", "path", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnw("catalog watcher error", "error", err)
			}
		}
	}()
	return w, nil
}

func (c *Catalog) parseKind(s string) EntityKind { return EntityKind(c.kindEnum.mustParse(s)) }

func (c *Catalog) parseSubKindOrInvalid(s string) EntitySubKind {
	if _, ok := c.subKindEnum.choices[s]; !ok {
		return SubKindInvalid
	}
	return EntitySubKind(c.subKindEnum.mustParse(s))
}

func (c *Catalog) parseSensorOrInvalid(s string) SensorType {
	if _, ok := c.sensorEnum.choices[s]; !ok {
		return SensorInvalid
	}
	return SensorType(c.sensorEnum.mustParse(s))
}

// Data returns the derived EntityTypeData for t.
func (c *Catalog) Data(t EntityType) *EntityTypeData { return &c.data[t] }

// ParseType looks up an EntityType by its declarative name; panics if unknown,
// matching the catalog's build-time-immutable contract.
func (c *Catalog) ParseType(s string) EntityType { return EntityType(c.typeEnum.mustParse(s)) }

// TryParseType is ParseType without the panic, for callers resolving a
// client-supplied name (e.g. a spawn request) that may not name a real type.
func (c *Catalog) TryParseType(s string) (EntityType, bool) {
	choice, ok := c.typeEnum.choices[s]
	return EntityType(choice), ok
}

func (c *Catalog) TypeName(t EntityType) string   { return c.typeEnum.String(choice(t)) }
func (c *Catalog) KindName(k EntityKind) string   { return c.kindEnum.String(choice(k)) }
func (c *Catalog) SubKindName(s EntitySubKind) string {
	return c.subKindEnum.String(choice(s))
}
func (c *Catalog) SensorName(s SensorType) string { return c.sensorEnum.String(choice(s)) }

// TypeCount returns the number of entity types this catalog declares, for
// callers (e.g. the `catalog reload` dev command) reporting what a parse
// produced without walking the catalog themselves.
func (c *Catalog) TypeCount() int { return len(c.typeEnum.choices) }

// ---- derivation rules ----

const (
	shellSpeedFactor     = 0.75
	aircraftSpeedCap     = 140 * flat.Velocity(flat.MeterPerSecond)
	globalSpeedCap       = 1000 * flat.Velocity(flat.MeterPerSecond)
	projectileAccel      = 800 // m/s^2, integrated for missile/rocket/SAM range->lifespan
	sensorRangeCap       = 2000
	narrowShellRatio     = 0.2 // width/length below which a shell loses the length^3 damage term
	homingReloadFactor   = 1.5
)

func deriveOne(d *EntityTypeData) {
	deriveSpeed(d)
	deriveRangeAndLifespan(d)
	deriveHealth(d)
	deriveDamage(d)
	deriveReload(d)
	deriveGeometry(d)
	deriveSensors(d)
	deriveResistance(d)
}

// deriveResistance fills in a neutral default (no ram damage reduction) for
// catalog entries that don't declare RamDamage, since a zero value would
// otherwise mean "divide by zero" at the ram-collision call site.
// ResistanceBySubKind needs no such fixup: Resistance already returns 1 for
// any sub-kind absent from the table.
func deriveResistance(d *EntityTypeData) {
	if d.RamDamage == 0 {
		d.RamDamage = 1
	}
}

func deriveSpeed(d *EntityTypeData) {
	c := currentBuildingCatalog
	switch d.SubKind {
	case c.SubKindShell:
		d.Speed = flat.Velocity(float32(d.Speed) * shellSpeedFactor)
	case c.SubKindAircraft:
		d.Speed = d.Speed.ClampMagnitude(aircraftSpeedCap)
	}
	d.Speed = d.Speed.ClampMagnitude(globalSpeedCap)
}

// deriveRangeAndLifespan converts a declared maximum range into a Lifespan,
// class-specific per the projectile's acceleration profile, then zeroes the
// now-redundant Range field.
func deriveRangeAndLifespan(d *EntityTypeData) {
	if d.Range <= 0 {
		return
	}
	c := currentBuildingCatalog
	var avgSpeed float32
	switch d.SubKind {
	case c.SubKindMissile, c.SubKindRocket, c.SubKindSAM:
		maxSpeed := d.Speed.Float()
		if maxSpeed <= 0 {
			avgSpeed = 1
			break
		}
		accelTime := maxSpeed / projectileAccel
		accelDistance := 0.5 * projectileAccel * accelTime * accelTime
		if accelDistance >= d.Range {
			// Never reaches max speed within range; average of the ramp.
			avgSpeed = math32Sqrt(2*projectileAccel*d.Range) / 2
		} else {
			cruiseDistance := d.Range - accelDistance
			cruiseTime := cruiseDistance / maxSpeed
			avgSpeed = d.Range / (accelTime + cruiseTime)
		}
	default: // shells and anything else: constant speed, f(length) already baked into declared Range
		avgSpeed = d.Speed.Float()
	}
	if avgSpeed <= 0 {
		avgSpeed = 1
	}
	lifespanSeconds := d.Range / avgSpeed
	if lifespanSeconds < 0.1 {
		lifespanSeconds = 0.1
	}
	d.Lifespan = flat.Seconds(lifespanSeconds)
	d.Range = 0
}

func deriveHealth(d *EntityTypeData) {
	c := currentBuildingCatalog
	if d.Kind != c.KindBoat {
		return
	}
	floor := d.Length / 180
	if floor < 1.0/3.0 {
		floor = 1.0 / 3.0
	}
	if d.Damage < floor {
		d.Damage = floor
	}
}

func deriveDamage(d *EntityTypeData) {
	c := currentBuildingCatalog
	if d.Kind != c.KindWeapon {
		return
	}
	length := d.Length
	switch d.SubKind {
	case c.SubKindTorpedo:
		d.Damage = 0.27 * pow32(length, 0.7)
	case c.SubKindMine:
		d.Damage = 1.5
	case c.SubKindDepthCharge:
		d.Damage = 0.7
	case c.SubKindMissile, c.SubKindRocket:
		d.Damage = 0.19 * pow32(length, 0.7)
	case c.SubKindShell:
		narrow := d.Length > 0 && d.Width/d.Length < narrowShellRatio
		base := 0.5 * pow32(length, 0.35)
		if narrow {
			d.Damage = base
		} else {
			wide := 0.14 * pow32(length, 3)
			if wide > base {
				d.Damage = wide
			} else {
				d.Damage = base
			}
		}
	}
}

var reloadDefaults = map[string]float32{
	"torpedo":     8,
	"missile":     10,
	"rocket":      6,
	"sam":         6,
	"shell":       2,
	"mine":        0,
	"depthCharge": 4,
}

func deriveReload(d *EntityTypeData) {
	c := currentBuildingCatalog
	if d.Reload == 0 {
		if secs, ok := reloadDefaults[c.SubKindName(d.SubKind)]; ok {
			d.Reload = flat.Seconds(secs)
		}
	}
	if d.SubKind == c.SubKindTorpedo && hasSensor(d) {
		d.Reload = flat.Seconds(d.Reload.Float() * homingReloadFactor)
	}
}

func hasSensor(d *EntityTypeData) bool { return len(d.Sensors) > 0 }

func deriveGeometry(d *EntityTypeData) {
	d.Radius = flat.Vec2{X: d.Width, Y: d.Length}.Scale(0.5).Length()
	invDenom := d.Radius * (1.0 / 30.0) * (1.0 - d.Stealth)
	if invDenom > 1 {
		invDenom = 1
	}
	if invDenom <= 0 {
		d.InvSize = 1
	} else {
		d.InvSize = 1.0 / invDenom
	}
}

var sensorBase = map[string]float32{
	"visual": 500,
	"radar":  800,
	"sonar":  600,
}

func deriveSensors(d *EntityTypeData) {
	c := currentBuildingCatalog
	for i := range d.Sensors {
		s := &d.Sensors[i]
		if s.Range > 0 {
			continue
		}
		base := sensorBase[c.SensorName(s.Type)]
		r := base + d.Length*4
		if r > sensorRangeCap {
			r = sensorRangeCap
		}
		s.Range = r
	}
}

// weaponPriority ranks armament sub-kinds for the per-entity firing order:
// higher values fire first when multiple slots are ready.
var weaponPriority = map[string]int{
	"torpedo":     100,
	"missile":     90,
	"sam":         85,
	"rocket":      80,
	"depthCharge": 70,
	"mine":        60,
	"shell":       50,
}

func deriveArmaments(d *EntityTypeData) {
	c := currentBuildingCatalog
	var slots []Slot
	for _, a := range d.Armaments {
		count := a.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			slot := Slot{Armament: a, Reload: c.Data(a.Default).Reload}
			if slot.Turret != nil {
				slot.PositionForward = d.Turrets[*slot.Turret].PositionForward
				slot.PositionSide = d.Turrets[*slot.Turret].PositionSide
			}
			if a.Symmetrical && i%2 == 1 {
				slot.PositionSide = -slot.PositionSide
				slot.Angle = -slot.Angle
			}
			slots = append(slots, slot)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return weaponPriority[c.SubKindName(slots[i].SubKind)] > weaponPriority[c.SubKindName(slots[j].SubKind)]
	})
	d.Slots = slots
}

// currentBuildingCatalog lets the per-entry derive* helpers resolve enum
// choices (SubKindTorpedo and friends) mid-Parse, before the Catalog being
// built is itself stored as Current. Parse is not reentrant or concurrent,
// so a package-level scratch pointer is safe here.
var currentBuildingCatalog *Catalog

func pow32(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}

func math32Sqrt(v float32) float32 { return float32(math.Sqrt(float64(v))) }

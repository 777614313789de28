// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog is the immutable, declarative entity catalog: static
// per-entity-type geometry, armaments, sensors, kinematics and damage model,
// loaded once from a JSON source and indexed by EntityType thereafter.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/SoftbearStudios/mk48arena/internal/flat"
)

// EntityKind classifies an entity's broad role: boat, weapon, collectible,
// decoy or obstacle.
type EntityKind choice

// EntitySubKind further refines Kind (e.g. torpedo, mine, submarine, MTB).
type EntitySubKind choice

// EntityType identifies a specific catalog entry (e.g. "fairmileD", "crate").
type EntityType choice

// SensorType is one of visual, radar or sonar.
type SensorType choice

// activeCatalog resolves the enum tables for (un)marshaling an enum-backed
// type: the catalog under construction while Parse is running, else the
// live Current catalog for every other caller (world state, wire messages).
func activeCatalog() *Catalog {
	if currentBuildingCatalog != nil {
		return currentBuildingCatalog
	}
	return Current()
}

func (k EntityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(activeCatalog().kindEnum.String(choice(k)))
}

func (k *EntityKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	c, err := activeCatalog().kindEnum.parseText([]byte(s))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	*k = EntityKind(c)
	return nil
}

func (s EntitySubKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(activeCatalog().subKindEnum.String(choice(s)))
}

func (s *EntitySubKind) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	c, err := activeCatalog().subKindEnum.parseText([]byte(str))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	*s = EntitySubKind(c)
	return nil
}

// ResistanceTable is a per-incoming-weapon-sub-kind damage multiplier (1 =
// normal, <1 = armored against that sub-kind), declared in JSON as an
// object keyed by sub-kind name (e.g. {"torpedo": 0.2}). Grounded on
// original_source's per-type `resistance_to_subkind` table: a flat scalar
// can't express a battleship being torpedo-resistant but not shell-
// resistant, so this keys the multiplier by the attacker's own sub-kind
// instead of applying one number to every incoming weapon.
type ResistanceTable map[EntitySubKind]float32

func (r ResistanceTable) MarshalJSON() ([]byte, error) {
	byName := make(map[string]float32, len(r))
	for sub, mult := range r {
		byName[activeCatalog().subKindEnum.String(choice(sub))] = mult
	}
	return json.Marshal(byName)
}

func (r *ResistanceTable) UnmarshalJSON(b []byte) error {
	var byName map[string]float32
	if err := json.Unmarshal(b, &byName); err != nil {
		return err
	}
	t := make(ResistanceTable, len(byName))
	for name, mult := range byName {
		c, err := activeCatalog().subKindEnum.parseText([]byte(name))
		if err != nil {
			return fmt.Errorf("catalog: resistance: %w", err)
		}
		t[EntitySubKind(c)] = mult
	}
	*r = t
	return nil
}

func (t EntityType) MarshalJSON() ([]byte, error) {
	return json.Marshal(activeCatalog().typeEnum.String(choice(t)))
}

func (t *EntityType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	c, err := activeCatalog().typeEnum.parseText([]byte(s))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	*t = EntityType(c)
	return nil
}

func (s SensorType) MarshalJSON() ([]byte, error) {
	return json.Marshal(activeCatalog().sensorEnum.String(choice(s)))
}

func (s *SensorType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	c, err := activeCatalog().sensorEnum.parseText([]byte(str))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	*s = SensorType(c)
	return nil
}

// Data returns this type's derived data from the live catalog.
func (t EntityType) Data() *EntityTypeData { return Current().Data(t) }

// String returns the declarative name of t in the live catalog.
func (t EntityType) String() string { return Current().TypeName(t) }

// Armament is a weapon or countermeasure mount declared on an EntityTypeData,
// prior to derivation expanding its count/symmetry into individual Slots.
type Armament struct {
	Type            EntityKind    `json:"type"`
	SubKind         EntitySubKind `json:"subtype"`
	Default         EntityType    `json:"default"`
	Count           int           `json:"count"`
	Symmetrical     bool          `json:"symmetrical"`
	Vertical        bool          `json:"vertical"`
	PositionForward float32       `json:"positionForward"`
	PositionSide    float32       `json:"positionSide"`
	Angle           flat.Angle    `json:"angle"`
	Turret          *int          `json:"turret,omitempty"`
}

// TurretIndex returns the index of the turret the armament is mounted on,
// or -1 if it is hull-mounted.
func (a *Armament) TurretIndex() int {
	if a.Turret != nil {
		return *a.Turret
	}
	return -1
}

// Slot is one expanded, individually-trackable armament mount: the result
// of applying Count/Symmetrical expansion to a declared Armament.
type Slot struct {
	Armament
	Reload flat.Ticks // per-slot reload derived from the Default type
}

// Sensor is a declared sensor in an EntityTypeData, prior to the catalog's
// range derivation.
type Sensor struct {
	Type  SensorType `json:"type"`
	Range float32    `json:"range"`
}

// Turret is a turret's relative mount transform and azimuth arc.
type Turret struct {
	PositionForward float32    `json:"positionForward"`
	PositionSide    float32    `json:"positionSide"`
	Angle           flat.Angle `json:"angle"`
	AzimuthFL       flat.Angle `json:"azimuthFL"`
	AzimuthFR       flat.Angle `json:"azimuthFR"`
	AzimuthBL       flat.Angle `json:"azimuthBL"`
	AzimuthBR       flat.Angle `json:"azimuthBR"`
}

// CheckAzimuth reports whether curr lies within the turret's valid firing arc.
func (t *Turret) CheckAzimuth(curr flat.Angle) bool {
	azimuthF := (flat.HalfTurn/2 + curr - t.Angle).Float()
	if t.AzimuthFL.Float()-3.14159265 > azimuthF {
		return false
	}
	if 3.14159265-t.AzimuthFR.Float() < azimuthF {
		return false
	}
	azimuthB := (curr - t.Angle).Float()
	if t.AzimuthBL.Float()-3.14159265 > azimuthB {
		return false
	}
	if 3.14159265-t.AzimuthBR.Float() < azimuthB {
		return false
	}
	return true
}

// EntityTypeData is the full static description of an EntityType, after
// derivation: every field here is either declared directly in the JSON
// source or computed once by deriveOne at load time. All units are SI.
type EntityTypeData struct {
	Kind         EntityKind    `json:"type"`
	SubKind      EntitySubKind `json:"subtype"`
	Level        uint8         `json:"level"`
	Limited      bool          `json:"limited"`
	NPC          bool          `json:"npc"`
	Lifespan     flat.Ticks    `json:"lifespan"`
	Reload       flat.Ticks    `json:"reload"`
	Speed        flat.Velocity `json:"speed"`
	Length       float32       `json:"length"`
	Width        float32       `json:"width"`
	Radius       float32       `json:"-"`
	InvSize      float32       `json:"-"`
	Damage       float32       `json:"damage"`
	// ResistanceBySubKind is looked up per incoming attacker via
	// Resistance; an entry absent from the declarative source means no
	// special resistance against that sub-kind (multiplier 1).
	ResistanceBySubKind ResistanceTable `json:"resistance"`
	// RamDamage divides damage taken by ram sub-kind boats (e.g. 3 means
	// a ram takes 1/3 of the damage a normal hull would).
	RamDamage    float32       `json:"ramDamage"`
	AntiAircraft float32       `json:"antiAircraft"`
	Stealth      float32       `json:"stealth"`
	Range        float32       `json:"range"`
	Sensors      []Sensor      `json:"sensors"`
	Armaments    []Armament    `json:"armaments"`
	Slots        []Slot        `json:"-"`
	Turrets      []Turret      `json:"turrets"`
	Label        string        `json:"label"`
}

// Resistance returns d's damage multiplier against an incoming attack by
// sub, defaulting to 1 (no resistance) when sub has no entry in
// ResistanceBySubKind.
func (d *EntityTypeData) Resistance(sub EntitySubKind) float32 {
	if mult, ok := d.ResistanceBySubKind[sub]; ok {
		return mult
	}
	return 1
}

// MaxHealth is a boat's maximum health as Ticks (time-to-sink at full damage
// rate); non-boats get a small arbitrary non-zero value.
func (d *EntityTypeData) MaxHealth() flat.Ticks {
	if d.Kind == Current().KindBoat {
		return flat.DamageToTicks(d.Damage)
	}
	return 20
}

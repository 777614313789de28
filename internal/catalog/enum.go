// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"errors"
	"sort"
)

// choice is an index into an enum's string table. Only a uint8 is needed:
// the catalog never carries more than 255 distinct kinds of anything.
type choice uint8

const invalidChoice = choice(0)

// enum maps a declarative catalog's string identifiers (entity kind, sub
// kind, sensor type, ...) to compact integer choices, discovered from the
// keys actually present in the loaded JSON rather than hardcoded, so that
// adding a new kind to the catalog never requires a Go code change.
type enum struct {
	name    string
	strings []string
	choices map[string]choice
}

func (e *enum) add(s string) {
	if e.strings == nil {
		e.strings = []string{"invalid"}
	}
	for _, other := range e.strings {
		if s == other {
			return
		}
	}
	e.strings = append(e.strings, s)
}

func (e *enum) freeze(name string) {
	sort.Strings(e.strings[invalidChoice+1:])
	e.choices = make(map[string]choice, len(e.strings)-1)
	for i, s := range e.strings {
		if choice(i) == invalidChoice {
			continue
		}
		e.choices[s] = choice(i)
	}
	e.name = name
}

func (e *enum) mustParse(s string) choice {
	c, ok := e.choices[s]
	if !ok {
		panic("catalog: invalid " + e.name + ": " + s)
	}
	return c
}

func (e *enum) parseText(text []byte) (choice, error) {
	c, ok := e.choices[string(text)]
	if !ok {
		return invalidChoice, errors.New("catalog: invalid " + e.name + ": " + string(text))
	}
	return c, nil
}

func (e *enum) String(c choice) string {
	return e.strings[c]
}

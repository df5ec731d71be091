// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/netpfl/compiler"
	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/symtab"
)

// databaseFixture is the YAML shape netpflc reads its Database from:
// a minimal stand-in for the (out-of-scope) protocol-database XML
// document, just large enough to name protocols, give a few of them
// fixed-width fields, and wire the Encapsulation Graph's edges.
type databaseFixture struct {
	Start  string       `yaml:"start"`
	Protos []protoEntry `yaml:"protos"`
	Fields []fieldEntry `yaml:"fields"`
	Edges  []edgeEntry  `yaml:"edges"`
}

type protoEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type fieldEntry struct {
	Proto      string `yaml:"proto"`
	Name       string `yaml:"name"`
	Size       int    `yaml:"size"`
	MultiProto bool   `yaml:"multiproto"`
}

type edgeEntry struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Preferred bool   `yaml:"preferred"`
}

func loadDatabase(data []byte) (*netpfl.Database, error) {
	var fx databaseFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, err
	}
	if fx.Start == "" {
		return nil, fmt.Errorf("fixture has no start protocol")
	}

	st := symtab.New()
	protos := make(map[string]*symtab.Proto, len(fx.Protos))
	for _, pe := range fx.Protos {
		p, err := st.AddProto(pe.ID, pe.Name)
		if err != nil {
			return nil, err
		}
		protos[pe.Name] = p
	}

	for _, fe := range fx.Fields {
		p, ok := protos[fe.Proto]
		if !ok {
			return nil, fmt.Errorf("field %q references unknown proto %q", fe.Name, fe.Proto)
		}
		st.StoreProtoField(p, &symtab.Field{
			Name:       fe.Name,
			Kind:       symtab.FieldFixed,
			FixedLen:   fe.Size,
			MultiProto: fe.MultiProto,
		})
	}

	start, ok := protos[fx.Start]
	if !ok {
		return nil, fmt.Errorf("start proto %q not declared", fx.Start)
	}
	g := graph.New(start)
	for _, ee := range fx.Edges {
		from, ok := protos[ee.From]
		if !ok {
			return nil, fmt.Errorf("edge references unknown proto %q", ee.From)
		}
		to, ok := protos[ee.To]
		if !ok {
			return nil, fmt.Errorf("edge references unknown proto %q", ee.To)
		}
		g.AddEdge(from, to, ee.Preferred)
	}
	g.AssignLayers()

	return netpfl.NewDatabase(st, g), nil
}

// Copyright 2025 Ian Lewis
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

package testutil

import (
	"fmt"
	"strings"
)

// Record is a record in a markup dump.
type Record struct {
	ID int64

	// Tag is the record element name. Defaults to H1.
	Tag string

	Key    string
	AltKey string
	Body   string
	Page   string
}

// Markup returns the record's raw markup.
func (r *Record) Markup() string {
	tag := r.Tag
	if tag == "" {
		tag = "H1"
	}
	altKey := r.AltKey
	if altKey == "" {
		altKey = r.Key
	}
	return fmt.Sprintf("<%s><h><key1>%s</key1><key2>%s</key2></h><body>%s</body><tail><L>%d</L><pc>%s</pc></tail></%s>",
		tag, r.Key, altKey, r.Body, r.ID, r.Page, tag)
}

// Markup returns a complete markup dump holding records.
func Markup(dictID string, records []*Record) []byte {
	root := strings.ToLower(dictID)
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(&b, "<!DOCTYPE %s SYSTEM \"%s.dtd\">\n", root, root)
	fmt.Fprintf(&b, "<%s>\n", root)
	for _, r := range records {
		b.WriteString(r.Markup())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "</%s>\n", root)
	return []byte(b.String())
}

// HrsikesaRecords are records around the headword hfzIkeSa. Six records have
// it as their key and record 263938 names it in a sub-entry.
var HrsikesaRecords = []*Record{
	{
		ID:   263921,
		Key:  "hfzIka",
		Body: "<s>hfzIka</s> n. an organ of sense",
		Page: "1304,1",
	},
	{
		ID:   263922,
		Key:  "hfzIkeSa",
		Body: "<s>hfzIkeSa</s> m. lord of the senses, N. of <s>vizRu</s>",
		Page: "1304,1",
	},
	{
		ID:   263925,
		Tag:  "H2",
		Key:  "hfzIkeSa",
		Body: "N. of the tenth month",
		Page: "1304,1",
	},
	{
		ID:   263929,
		Tag:  "H3",
		Key:  "hfzIkeSa",
		Body: "N. of a <ab>Tīrtha</ab>",
		Page: "1304,1",
	},
	{
		ID:   263931,
		Tag:  "H3A",
		Key:  "hfzIkeSa",
		Body: "N. of a <ab>Śaiva</ab> teacher",
		Page: "1304,1",
	},
	{
		ID:   263935,
		Tag:  "H4",
		Key:  "hfzIkeSa",
		Body: "of various authors",
		Page: "1304,2",
	},
	{
		ID:   263938,
		Tag:  "H4",
		Key:  "hfzIkeSa",
		Body: "N. of a poet, <s1 slp1=\"hfzIkeSa\">Hṛṣīkeśa</s1> <ls>Cat.</ls>",
		Page: "1304,2",
	},
	{
		ID:   263940,
		Key:  "hfzIkeSatva",
		Body: "<s>hfzIkeSa-tva</s> n. the state of being <s>hfzIkeSa</s>",
		Page: "1304,2",
	},
}

// HrsikesaKeyIDs are the ids of the records keyed hfzIkeSa.
var HrsikesaKeyIDs = []string{"263922", "263925", "263929", "263931", "263935", "263938"}

// SmallRecords are a few unrelated records.
var SmallRecords = []*Record{
	{ID: 1, Key: "a", Body: "<s>a</s> the first letter", Page: "1,1"},
	{ID: 2, Key: "agni", Body: "<s>agni</s> m. fire", Page: "1,2"},
	{ID: 3, Key: "agni", Body: "N. of the god of fire, <s1 slp1=\"agni\">Agni</s1>", Page: "1,2"},
	{ID: 4, Key: "rAma", Body: "<s>rAma</s> mfn. pleasing", Page: "2,1"},
	{ID: 5, Key: "rAma", Body: "N. of the hero <s1 slp1=\"rAma\">Rāma</s1>, son of <s1 slp1=\"daSaraTa\">Daśaratha</s1>", Page: "2,1"},
}

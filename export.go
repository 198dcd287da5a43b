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

package cdsl

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ianlewis/go-cdsl/stardict"
	"github.com/ianlewis/go-cdsl/translit"
)

// Export writes the dictionary to dir in the StarDict format with keys and
// meanings written in scheme. Each primary entry becomes an article. Its
// alternate key and the keys of its sub-entries become synonyms.
func (d *Dictionary) Export(ctx context.Context, dir string, scheme translit.Scheme) error {
	meta := d.Metadata()
	info := &stardict.Info{
		BookName:    meta.Name,
		Website:     meta.URL,
		Description: fmt.Sprintf("Cologne Digital Sanskrit Dictionaries %s (%s)", meta.ID, meta.BuildMarker),
		Date:        meta.Date,
	}
	if info.BookName == "" {
		info.BookName = meta.ID
	}

	if err := stardict.Write(dir, exportName(meta.ID), info, d.articles(ctx, scheme)); err != nil {
		return fmt.Errorf("exporting %s: %w", meta.ID, err)
	}
	return nil
}

// VerifyExport reads back the StarDict files written to dir by
// [Dictionary.Export].
func (d *Dictionary) VerifyExport(dir string) (*stardict.Summary, error) {
	id := d.ID()
	sum, err := stardict.Verify(dir, exportName(id))
	if err != nil {
		return nil, fmt.Errorf("verifying %s export: %w", id, err)
	}
	return sum, nil
}

func exportName(id string) string {
	return strings.ToLower(id)
}

func (d *Dictionary) articles(ctx context.Context, scheme translit.Scheme) iter.Seq2[*stardict.Word, error] {
	return func(yield func(*stardict.Word, error) bool) {
		var cur *stardict.Word
		for e, err := range d.Entries(ctx, scheme) {
			if err != nil {
				yield(nil, err)
				return
			}
			if e.IsSubEntry() {
				if cur != nil && e.Key != cur.Word && !slices.Contains(cur.Synonyms, e.Key) {
					cur.Synonyms = append(cur.Synonyms, e.Key)
				}
				continue
			}
			if cur != nil && !yield(cur, nil) {
				return
			}
			cur = &stardict.Word{
				Word: e.Key,
				Data: e.Meaning(),
			}
			if e.AltKey != "" && e.AltKey != e.Key {
				cur.Synonyms = append(cur.Synonyms, e.AltKey)
			}
		}
		if cur != nil {
			yield(cur, nil)
		}
	}
}
